package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/telnet2/quickcmd/internal/config"
	"github.com/telnet2/quickcmd/internal/dispatch"
	"github.com/telnet2/quickcmd/internal/event"
	"github.com/telnet2/quickcmd/internal/host"
	"github.com/telnet2/quickcmd/internal/server"
	"github.com/telnet2/quickcmd/internal/service"
	"github.com/telnet2/quickcmd/internal/terminal"
	"github.com/telnet2/quickcmd/pkg/types"
)

type frame struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var _ = Describe("Server", func() {
	var (
		bus   *event.Bus
		terms *terminal.Registry
		srv   *server.Server
		ts    *httptest.Server
		store *config.MemoryStore
	)

	BeforeEach(func() {
		bus = event.NewBus()
		terms = terminal.NewRegistry(terminal.Options{Dir: GinkgoT().TempDir(), Publisher: bus})
		cmds := host.NewCommands(bus)
		cmds.SetTimeout(5 * time.Second)
		disp := dispatch.New(terms, cmds, host.NewEventInserter(bus),
			dispatch.WithReporter(service.NewEventReporter(bus)))

		store = config.NewMemoryStore(map[types.Scope][]*types.Node{
			types.ScopeGlobal: {
				{ID: "hello", Kind: types.KindCommand, Name: "Hello", Command: "echo hello-from-shell", TerminalName: "build", Shortcut: "h"},
				{ID: "save", Kind: types.KindCommand, Name: "Save", Command: "editor.save", ExecutionMode: types.ModeEditorAPI},
			},
		})
		svc, err := service.New(context.Background(), service.Options{
			Store:      store,
			Bus:        bus,
			Dispatcher: disp,
			Commands:   cmds,
		})
		Expect(err).NotTo(HaveOccurred())

		srv = server.New(server.DefaultConfig(), svc, terms)
		ts = httptest.NewServer(srv.Router())
	})

	AfterEach(func() {
		ts.Close()
		terms.Close()
		bus.Close()
	})

	post := func(msg types.Message) (int, frame) {
		body, err := json.Marshal(msg)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ts.URL+"/message", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		var f frame
		Expect(json.NewDecoder(resp.Body).Decode(&f)).To(Succeed())
		return resp.StatusCode, f
	}

	payload := func(v any) json.RawMessage {
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		return data
	}

	get := func(path string, into any) int {
		resp, err := http.Get(ts.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		if into != nil {
			Expect(json.NewDecoder(resp.Body).Decode(into)).To(Succeed())
		}
		return resp.StatusCode
	}

	Describe("POST /message", func() {
		It("applies an edit and reports the result", func() {
			status, f := post(types.Message{ID: "1", Type: types.MsgAddNode, Payload: payload(types.AddNodeParams{
				Scope: types.ScopeLocal,
				Node:  types.NodePayload{Name: "Test", Command: "go test ./..."},
			})})
			Expect(status).To(Equal(http.StatusOK))
			Expect(f.ID).To(Equal("1"))
			Expect(f.Type).To(Equal(types.ResponseResult))

			var res service.MutationResult
			Expect(json.Unmarshal(f.Data, &res)).To(Succeed())
			Expect(res.Saved).To(BeTrue())
			Expect(store.Writes()).To(Equal(1))
		})

		It("maps a shortcut conflict to 422", func() {
			status, f := post(types.Message{Type: types.MsgAddNode, Payload: payload(types.AddNodeParams{
				Scope: types.ScopeGlobal,
				Node:  types.NodePayload{Name: "Help", Command: "help", Shortcut: "H"},
			})})
			Expect(status).To(Equal(http.StatusUnprocessableEntity))
			Expect(f.Type).To(Equal(types.ResponseError))

			var data types.ErrorData
			Expect(json.Unmarshal(f.Data, &data)).To(Succeed())
			Expect(data.Code).To(Equal(types.ErrCodeValidation))
			Expect(data.OwnerID).To(Equal("hello"))
		})

		It("rejects a body that is not a message", func() {
			resp, err := http.Post(ts.URL+"/message", "application/json", strings.NewReader("{"))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("runs a terminal command", func() {
			status, _ := post(types.Message{Type: types.MsgExecuteNode, Payload: payload(types.ExecuteNodeParams{ID: "hello", Wait: true})})
			Expect(status).To(Equal(http.StatusOK))

			Eventually(func() string {
				var out struct {
					Output string `json:"output"`
				}
				if get("/terminal/build", &out) != http.StatusOK {
					return ""
				}
				return out.Output
			}, 5*time.Second, 50*time.Millisecond).Should(ContainSubstring("hello-from-shell"))
		})
	})

	Describe("read routes", func() {
		It("serves the effective tree", func() {
			var eff struct {
				Entries []struct {
					Scope types.Scope `json:"scope"`
					Node  types.Node  `json:"node"`
				} `json:"entries"`
			}
			Expect(get("/tree", &eff)).To(Equal(http.StatusOK))
			Expect(eff.Entries).To(HaveLen(2))
			Expect(eff.Entries[0].Node.ID).To(Equal("hello"))
		})

		It("serves one scope", func() {
			var st service.ScopeState
			Expect(get("/scope/global", &st)).To(Equal(http.StatusOK))
			Expect(st.Nodes).To(HaveLen(2))
			Expect(st.Saved).To(BeTrue())

			Expect(get("/scope/everywhere", nil)).To(Equal(http.StatusBadRequest))
		})

		It("looks commands up by name", func() {
			var info server.CommandInfo
			Expect(get("/command/hello", &info)).To(Equal(http.StatusOK))
			Expect(info.Node.ID).To(Equal("hello"))
			Expect(info.Shortcuts).To(Equal([]string{"h"}))

			Expect(get("/command/nothing", nil)).To(Equal(http.StatusNotFound))
		})

		It("reports unknown terminals", func() {
			Expect(get("/terminal/none", nil)).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /event", func() {
		It("streams tree changes", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/event?type=tree.changed", nil)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

			lines := make(chan string, 32)
			go func() {
				defer GinkgoRecover()
				sc := bufio.NewScanner(resp.Body)
				for sc.Scan() {
					lines <- sc.Text()
				}
				close(lines)
			}()
			Eventually(lines).Should(Receive(Equal("event: server.connected")))

			post(types.Message{Type: types.MsgDeleteNode, Payload: payload(types.NodeRefParams{Scope: types.ScopeGlobal, ID: "save"})})
			Eventually(lines, 3*time.Second).Should(Receive(Equal("event: tree.changed")))
			var data string
			Eventually(lines).Should(Receive(&data))
			Expect(data).To(ContainSubstring(`"op":"deleteNode"`))
		})
	})

	Describe("GET /ws", func() {
		var (
			conn   *websocket.Conn
			frames chan frame
		)

		BeforeEach(func() {
			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?clientId=ui"
			var err error
			conn, _, err = websocket.DefaultDialer.Dial(url, nil)
			Expect(err).NotTo(HaveOccurred())

			frames = make(chan frame, 64)
			go func() {
				defer GinkgoRecover()
				for {
					var f frame
					if err := conn.ReadJSON(&f); err != nil {
						close(frames)
						return
					}
					frames <- f
				}
			}()
			var hello frame
			Eventually(frames).Should(Receive(&hello))
			Expect(hello.Type).To(Equal("hello"))
		})

		AfterEach(func() {
			conn.Close()
		})

		// next returns the next frame accepted by match.
		next := func(match func(frame) bool) frame {
			var got frame
			Eventually(func() bool {
				select {
				case f, ok := <-frames:
					if !ok {
						return false
					}
					if match(f) {
						got = f
						return true
					}
				default:
				}
				return false
			}, 5*time.Second, 10*time.Millisecond).Should(BeTrue())
			return got
		}
		reply := func(id string) func(frame) bool {
			return func(f frame) bool { return f.ID == id && f.Type != types.ResponseEvent }
		}

		It("answers messages and pushes events", func() {
			Expect(conn.WriteJSON(types.Message{ID: "a1", Type: types.MsgUndo, Payload: payload(types.ScopeParams{Scope: types.ScopeGlobal})})).To(Succeed())
			f := next(reply("a1"))
			Expect(f.Type).To(Equal(types.ResponseResult))

			Expect(conn.WriteJSON(types.Message{ID: "a2", Type: types.MsgDeleteNode, Payload: payload(types.NodeRefParams{Scope: types.ScopeGlobal, ID: "hello"})})).To(Succeed())
			next(reply("a2"))
			ev := next(func(f frame) bool { return f.Type == types.ResponseEvent && strings.Contains(string(f.Data), `"tree.changed"`) })
			Expect(string(ev.Data)).To(ContainSubstring(`"nodeId":"hello"`))
		})

		It("runs editor commands registered by the client", func() {
			Expect(conn.WriteJSON(types.Message{ID: "r1", Type: types.MsgRegisterCommands, Payload: payload(types.RegisterCommandsParams{ClientID: "ui", Commands: []string{"editor.save"}})})).To(Succeed())
			Expect(next(reply("r1")).Type).To(Equal(types.ResponseResult))

			Expect(conn.WriteJSON(types.Message{ID: "x1", Type: types.MsgExecuteNode, Payload: payload(types.ExecuteNodeParams{ID: "save", Wait: true})})).To(Succeed())

			req := next(func(f frame) bool {
				return f.Type == types.ResponseEvent && strings.Contains(string(f.Data), `"command.request"`)
			})
			var ev struct {
				Data event.CommandRequestData `json:"data"`
			}
			Expect(json.Unmarshal(req.Data, &ev)).To(Succeed())
			Expect(ev.Data.Command).To(Equal("editor.save"))

			Expect(conn.WriteJSON(types.Message{ID: "c1", Type: types.MsgCommandResult, Payload: payload(types.CommandResultParams{RequestID: ev.Data.RequestID})})).To(Succeed())
			Expect(next(reply("c1")).Type).To(Equal(types.ResponseResult))

			done := next(reply("x1"))
			Expect(done.Type).To(Equal(types.ResponseResult))
			var res service.ExecuteResult
			Expect(json.Unmarshal(done.Data, &res)).To(Succeed())
			Expect(res.Done).To(BeTrue())
		})
	})

	It("closes Disposed on /instance/dispose", func() {
		resp, err := http.Post(ts.URL+"/instance/dispose", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Eventually(srv.Disposed()).Should(BeClosed())
	})
})
