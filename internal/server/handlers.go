package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/pkg/types"
)

// maxMessageBytes bounds a POST /message body.
const maxMessageBytes = 1 << 20

// postMessage handles POST /message. The reply is the bridge response;
// its HTTP status follows the error code for error replies.
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidRequest, err.Error())
		return
	}
	var msg types.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidRequest, "invalid message: "+err.Error())
		return
	}

	resp := s.svc.Handle(r.Context(), msg)
	status := http.StatusOK
	if data, ok := resp.Data.(types.ErrorData); ok && resp.Type == types.ResponseError {
		status = statusFor(data.Code)
	}
	writeJSON(w, status, resp)
}

// getTree handles GET /tree.
func (s *Server) getTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Effective())
}

func scopeParam(r *http.Request) (types.Scope, error) {
	return types.ParseScope(chi.URLParam(r, "scope"))
}

// getScope handles GET /scope/{scope}.
func (s *Server) getScope(w http.ResponseWriter, r *http.Request) {
	sc, err := scopeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidRequest, err.Error())
		return
	}
	st, err := s.svc.ScopeState(sc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// getHistory handles GET /scope/{scope}/history.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	sc, err := scopeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidRequest, err.Error())
		return
	}
	entries, err := s.svc.History(sc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CommandInfo is a node found in the effective tree.
type CommandInfo struct {
	Node      *types.Node `json:"node"`
	Path      []string    `json:"path"`
	Scope     types.Scope `json:"scope"`
	Shortcuts []string    `json:"shortcuts,omitempty"`
}

// getCommand handles GET /command/{ref}, where ref is an id or a name.
func (s *Server) getCommand(w http.ResponseWriter, r *http.Request) {
	ref, err := url.PathUnescape(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidRequest, err.Error())
		return
	}
	m, ok := s.svc.Find(ref)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrCodeNotFound, "no command matches "+ref)
		return
	}

	info := CommandInfo{Node: m.Node, Scope: m.Scope}
	for _, a := range m.Ancestors {
		info.Path = append(info.Path, a.Label())
		if a.Shortcut != "" {
			info.Shortcuts = append(info.Shortcuts, a.Shortcut)
		}
	}
	info.Path = append(info.Path, m.Node.Label())
	if m.Node.Shortcut != "" {
		info.Shortcuts = append(info.Shortcuts, m.Node.Shortcut)
	}
	writeJSON(w, http.StatusOK, info)
}

// listTerminals handles GET /terminal.
func (s *Server) listTerminals(w http.ResponseWriter, r *http.Request) {
	if s.terminals == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.terminals.List())
}

// getTerminal handles GET /terminal/{name}.
func (s *Server) getTerminal(w http.ResponseWriter, r *http.Request) {
	name, _ := url.PathUnescape(chi.URLParam(r, "name"))
	if s.terminals == nil {
		writeError(w, http.StatusNotFound, types.ErrCodeNotFound, "terminal not found: "+name)
		return
	}
	t, ok := s.terminals.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrCodeNotFound, "terminal not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"info":   t.Info(),
		"last":   t.Last(),
		"output": t.Output(),
	})
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// disposeInstance handles POST /instance/dispose. The caller that owns
// the server decides how to stop once Disposed is closed.
func (s *Server) disposeInstance(w http.ResponseWriter, r *http.Request) {
	s.disposeOnce.Do(func() {
		logging.Info().Msg("dispose requested")
		if s.terminals != nil {
			s.terminals.Close()
		}
		close(s.disposed)
	})
	writeSuccess(w)
}
