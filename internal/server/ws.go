package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/telnet2/quickcmd/internal/event"
	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/pkg/types"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The server binds to loopback by default; origin policy is the CORS
	// configuration's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes to one websocket.
type wsConn struct {
	conn     *websocket.Conn
	clientID string
	mu       sync.Mutex
}

func (c *wsConn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// websocket handles GET /ws. Every inbound {type, payload} message is
// answered with a {type, data} reply carrying the message id; bus events
// are pushed as {type: "event", data}. command.request events only go to
// the client that registered the command. Messages are handled
// concurrently so a client can answer a command request while one of its
// own executeNode calls is waiting.
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	c := &wsConn{conn: conn, clientID: clientID}
	log := logging.Component("ws").With().Str("client", clientID).Logger()
	log.Info().Msg("client connected")

	ctx, cancel := context.WithCancel(context.Background())
	var handlers sync.WaitGroup
	defer func() {
		cancel()
		if cmds := s.svc.Commands(); cmds != nil {
			cmds.Cleanup(clientID)
		}
		handlers.Wait()
		conn.Close()
		log.Info().Msg("client disconnected")
	}()

	if err := c.write(types.Response{Type: "hello", Data: map[string]string{"clientId": clientID}}); err != nil {
		return
	}

	stream, err := s.svc.Bus().Stream(ctx)
	if err != nil {
		log.Error().Err(err).Msg("event stream unavailable")
		return
	}
	go s.pushEvents(ctx, c, stream)
	go func() {
		select {
		case <-s.closed:
			c.mu.Lock()
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			c.mu.Unlock()
			conn.Close()
		case <-ctx.Done():
		}
	}()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		handlers.Add(1)
		go func(msg types.Message) {
			defer handlers.Done()
			resp := s.svc.Handle(ctx, msg)
			if err := c.write(resp); err != nil {
				log.Debug().Err(err).Str("type", string(msg.Type)).Msg("reply not delivered")
			}
		}(msg)
	}
}

func (s *Server) pushEvents(ctx context.Context, c *wsConn, stream <-chan []byte) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		case payload, ok := <-stream:
			if !ok {
				return
			}
			if !forClient(payload, c.clientID) {
				continue
			}
			if err := c.write(types.Response{Type: types.ResponseEvent, Data: json.RawMessage(payload)}); err != nil {
				return
			}
		}
	}
}

// forClient reports whether an encoded event should reach clientID.
func forClient(payload []byte, clientID string) bool {
	if gjson.GetBytes(payload, "type").String() != string(event.CommandRequest) {
		return true
	}
	return gjson.GetBytes(payload, "data.clientId").String() == clientID
}
