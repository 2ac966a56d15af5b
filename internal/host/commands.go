// Package host implements the editor side of command execution: a registry
// of editor-API commands and the text inserters used by insertOnly nodes.
package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/telnet2/quickcmd/internal/event"
	"github.com/telnet2/quickcmd/internal/logging"
)

// DefaultTimeout bounds how long a remote client may take to answer.
const DefaultTimeout = 30 * time.Second

// Handler runs a command registered in-process.
type Handler func(ctx context.Context) error

// Publisher receives command.request events.
type Publisher interface {
	Publish(event.Event)
}

type pendingRequest struct {
	clientID string
	command  string
	result   chan string
}

// Commands resolves editor-API command ids. A command is either a local
// Handler or announced by a connected client, in which case Execute asks
// that client to run it and waits for its answer.
type Commands struct {
	mu sync.RWMutex

	local   map[string]Handler
	clients map[string]map[string]struct{} // clientID -> command ids
	pending map[string]*pendingRequest

	pub     Publisher
	timeout time.Duration
}

// NewCommands creates a registry. pub may be nil when no remote clients
// are expected.
func NewCommands(pub Publisher) *Commands {
	return &Commands{
		local:   make(map[string]Handler),
		clients: make(map[string]map[string]struct{}),
		pending: make(map[string]*pendingRequest),
		pub:     pub,
		timeout: DefaultTimeout,
	}
}

// SetTimeout changes the remote answer timeout.
func (c *Commands) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Register adds a local command, replacing any previous handler.
func (c *Commands) Register(id string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[id] = fn
}

// RegisterClient replaces the set of commands a client can run.
func (c *Commands) RegisterClient(clientID string, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		delete(c.clients, clientID)
		return
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	c.clients[clientID] = set
}

// Cleanup forgets a client and fails its pending requests.
func (c *Commands) Cleanup(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.clients, clientID)
	for id, p := range c.pending {
		if p.clientID == clientID {
			p.result <- "client disconnected"
			delete(c.pending, id)
		}
	}
}

// List returns every known command id, sorted.
func (c *Commands) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{}, len(c.local))
	for id := range c.local {
		seen[id] = struct{}{}
	}
	for _, set := range c.clients {
		for id := range set {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Execute runs the command id. Local handlers win over client commands.
func (c *Commands) Execute(ctx context.Context, id string) error {
	c.mu.RLock()
	fn, ok := c.local[id]
	client := c.ownerLocked(id)
	c.mu.RUnlock()

	if ok {
		return fn(ctx)
	}
	if client != "" && c.pub != nil {
		return c.executeRemote(ctx, client, id)
	}
	return c.unknown(id)
}

func (c *Commands) ownerLocked(id string) string {
	owners := make([]string, 0, 1)
	for clientID, set := range c.clients {
		if _, ok := set[id]; ok {
			owners = append(owners, clientID)
		}
	}
	if len(owners) == 0 {
		return ""
	}
	sort.Strings(owners)
	return owners[0]
}

func (c *Commands) executeRemote(ctx context.Context, clientID, id string) error {
	reqID := uuid.NewString()
	p := &pendingRequest{clientID: clientID, command: id, result: make(chan string, 1)}

	c.mu.Lock()
	c.pending[reqID] = p
	timeout := c.timeout
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	c.pub.Publish(event.Event{
		Type: event.CommandRequest,
		Data: event.CommandRequestData{RequestID: reqID, ClientID: clientID, Command: id},
	})
	logging.Debug().Str("client", clientID).Str("command", id).Str("request", reqID).Msg("command sent to client")

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-p.result:
		if msg != "" {
			return fmt.Errorf("command %s: %s", id, msg)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("command %s: client %s did not answer within %s", id, clientID, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitResult delivers a client's answer. errMsg is empty on success.
// It reports whether the request was still pending.
func (c *Commands) SubmitResult(requestID, errMsg string) bool {
	c.mu.Lock()
	p, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.result <- errMsg
	return true
}

// UnknownCommandError is returned for ids nobody registered.
type UnknownCommandError struct {
	ID         string
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown command %q, did you mean %q?", e.ID, e.Suggestion)
	}
	return fmt.Sprintf("unknown command %q", e.ID)
}

// IsUnknownCommand reports whether err is an UnknownCommandError.
func IsUnknownCommand(err error) bool {
	var u *UnknownCommandError
	return errors.As(err, &u)
}

func (c *Commands) unknown(id string) error {
	return &UnknownCommandError{ID: id, Suggestion: Suggest(id, c.List())}
}

// Suggest returns the candidate closest to id, or "" when nothing is close
// enough to be a plausible typo.
func Suggest(id string, candidates []string) string {
	best, bestScore := "", 0.0
	for _, cand := range candidates {
		if s := similarity(id, cand); s > bestScore {
			best, bestScore = cand, s
		}
	}
	if bestScore < 0.6 {
		return ""
	}
	return best
}

func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(max(len(a), len(b)))
}
