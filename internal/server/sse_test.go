package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnet2/quickcmd/internal/event"
)

type mockResponseWriter struct {
	*httptest.ResponseRecorder
	flushed int
}

func (m *mockResponseWriter) Flush() {
	m.flushed++
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{ResponseRecorder: httptest.NewRecorder()}
}

type noFlushWriter struct{}

func (n *noFlushWriter) Header() http.Header       { return http.Header{} }
func (n *noFlushWriter) Write([]byte) (int, error) { return 0, nil }
func (n *noFlushWriter) WriteHeader(int)           {}

func TestNewSSEWriter_NoFlusher(t *testing.T) {
	_, err := newSSEWriter(&noFlushWriter{})
	assert.Error(t, err)
}

func TestSSEWriter_WriteEvent(t *testing.T) {
	w := newMockResponseWriter()
	sse, err := newSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.writeEvent("tree.changed", event.TreeChangedData{Scope: "local", Op: "addNode", Saved: true}))

	body := w.Body.String()
	assert.Contains(t, body, "event: tree.changed\n")
	assert.Contains(t, body, `"op":"addNode"`)
	assert.Positive(t, w.flushed)
}

func TestSSEWriter_WriteHeartbeat(t *testing.T) {
	w := newMockResponseWriter()
	sse, _ := newSSEWriter(w)

	sse.writeHeartbeat()

	assert.Contains(t, w.Body.String(), ": heartbeat\n")
	assert.Positive(t, w.flushed)
}

func TestForClient(t *testing.T) {
	req := []byte(`{"seq":3,"type":"command.request","data":{"requestId":"r","clientId":"ui-1","command":"editor.save"}}`)
	assert.True(t, forClient(req, "ui-1"))
	assert.False(t, forClient(req, "ui-2"))

	other := []byte(`{"seq":4,"type":"tree.changed","data":{"scope":"global"}}`)
	assert.True(t, forClient(other, "ui-2"))
}
