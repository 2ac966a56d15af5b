package terminal

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/telnet2/quickcmd/internal/dispatch"
	"github.com/telnet2/quickcmd/internal/logging"
)

// Options configures new terminals.
type Options struct {
	Dir        string   // initial working directory
	Env        []string // KEY=VALUE pairs; empty inherits the process env
	QueueSize  int
	BufferSize int // bytes of transcript kept per terminal
	Publisher  Publisher
}

func (o Options) queueSize() int {
	if o.QueueSize > 0 {
		return o.QueueSize
	}
	return defaultQueueSize
}

func (o Options) bufferSize() int {
	if o.BufferSize > 0 {
		return o.BufferSize
	}
	return defaultBufferSize
}

// Registry addresses terminals by name. Two commands naming the same
// terminal share it; nothing arbitrates between them beyond the
// terminal's own queue.
type Registry struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	terms map[string]*Terminal
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		terms:  make(map[string]*Terminal),
	}
}

// CreateOrReuse returns the terminal called name, starting it if needed.
func (r *Registry) CreateOrReuse(_ context.Context, name string) (dispatch.Terminal, error) {
	return r.Open(name)
}

// Open is CreateOrReuse returning the concrete type.
func (r *Registry) Open(name string) (*Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if t, ok := r.terms[name]; ok && !t.Info().Closed {
		return t, nil
	}
	t, err := newTerminal(r.ctx, name, r.opts)
	if err != nil {
		return nil, err
	}
	r.terms[name] = t
	logging.Debug().Str("terminal", name).Msg("terminal created")
	return t, nil
}

// Get returns an existing terminal.
func (r *Registry) Get(name string) (*Terminal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.terms[name]
	return t, ok
}

// List describes every terminal, sorted by name.
func (r *Registry) List() []Info {
	r.mu.Lock()
	terms := make([]*Terminal, 0, len(r.terms))
	for _, t := range r.terms {
		terms = append(terms, t)
	}
	r.mu.Unlock()

	out := make([]Info, len(terms))
	for i, t := range terms {
		out[i] = t.Info()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Wait blocks until every terminal has drained its queue.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.Lock()
	terms := make([]*Terminal, 0, len(r.terms))
	for _, t := range r.terms {
		terms = append(terms, t)
	}
	r.mu.Unlock()

	var errs []error
	for _, t := range terms {
		if err := t.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops every terminal.
func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	terms := r.terms
	r.terms = make(map[string]*Terminal)
	r.mu.Unlock()

	for _, t := range terms {
		t.Close()
	}
}
