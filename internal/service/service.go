// Package service is the core of quickcmd: it owns the three command
// layers, applies edits with undo/redo, persists valid layers and executes
// commands from the effective tree.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/telnet2/quickcmd/internal/config"
	"github.com/telnet2/quickcmd/internal/dispatch"
	"github.com/telnet2/quickcmd/internal/event"
	"github.com/telnet2/quickcmd/internal/host"
	"github.com/telnet2/quickcmd/internal/journal"
	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/internal/model"
	"github.com/telnet2/quickcmd/internal/scope"
	"github.com/telnet2/quickcmd/pkg/types"
)

// Options configures a Service.
type Options struct {
	Store        config.Store
	Bus          *event.Bus
	Dispatcher   *dispatch.Dispatcher
	Commands     *host.Commands
	JournalDepth int
	TreeOptions  []model.Option
}

type layer struct {
	tree    *model.Tree
	journal *journal.Journal
	saved   bool   // memory matches the store
	problem string // why the layer is not saved, if it is not
}

// Service serializes every mutation on one mutex. Reads of the effective
// tree return the snapshot computed after the last mutation.
type Service struct {
	mu sync.Mutex

	store      config.Store
	bus        *event.Bus
	dispatcher *dispatch.Dispatcher
	commands   *host.Commands
	treeOpts   []model.Option

	layers    map[types.Scope]*layer
	effective *scope.Effective
}

// New loads every layer from the store. A layer that cannot be read
// starts empty and is reported in the log; it is not written until it
// is edited.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("service: store is required")
	}
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus()
	}

	s := &Service{
		store:      opts.Store,
		bus:        bus,
		dispatcher: opts.Dispatcher,
		commands:   opts.Commands,
		treeOpts:   opts.TreeOptions,
		layers:     make(map[types.Scope]*layer, len(types.Scopes)),
	}
	for _, sc := range types.Scopes {
		l := &layer{journal: journal.New(string(sc), opts.JournalDepth), saved: true}
		nodes, err := s.store.Read(ctx, sc)
		if err != nil {
			logging.Error().Err(err).Str("scope", string(sc)).Msg("failed to load layer, starting empty")
			l.saved = false
			l.problem = err.Error()
			nodes = nil
		}
		l.tree = model.New(nodes, s.treeOpts...)
		s.layers[sc] = l
	}
	s.recompute()
	return s, nil
}

// Bus returns the event bus the service publishes to.
func (s *Service) Bus() *event.Bus {
	return s.bus
}

// Commands returns the host command registry, or nil.
func (s *Service) Commands() *host.Commands {
	return s.commands
}

// Effective returns the current merged tree snapshot.
func (s *Service) Effective() *scope.Effective {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effective
}

// Layer returns a copy of one layer's roots.
func (s *Service) Layer(sc types.Scope) ([]*types.Node, error) {
	if !sc.Valid() {
		return nil, badRequest("unknown scope %q", sc)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers[sc].tree.Roots(), nil
}

// Validate runs the save-time checks on every layer and returns the
// failures keyed by scope.
func (s *Service) Validate() map[types.Scope]error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[types.Scope]error)
	for _, sc := range types.Scopes {
		if err := s.layers[sc].tree.Validate(); err != nil {
			out[sc] = err
		}
	}
	return out
}

func (s *Service) recompute() {
	layers := make(scope.Layers, len(s.layers))
	for sc, l := range s.layers {
		layers[sc] = l.tree.Roots()
	}
	s.effective = scope.Resolve(layers)
}

// persist writes a layer if it passes save-time validation. A layer that
// fails (typically a draft left by a kind conversion) stays in memory.
func (s *Service) persist(ctx context.Context, sc types.Scope, l *layer) {
	if err := l.tree.Validate(); err != nil {
		l.saved = false
		l.problem = err.Error()
		logging.Debug().Str("scope", string(sc)).Str("reason", l.problem).Msg("layer kept as draft")
		return
	}
	if err := s.store.Write(ctx, sc, l.tree.Roots()); err != nil {
		l.saved = false
		l.problem = err.Error()
		logging.Error().Err(err).Str("scope", string(sc)).Msg("failed to persist layer")
		return
	}
	l.saved = true
	l.problem = ""
}

func (s *Service) layer(sc types.Scope) (*layer, error) {
	if !sc.Valid() {
		if sc == "" {
			return nil, badRequest("scope is required (global|workspace|local)")
		}
		return nil, badRequest("unknown scope %q (global|workspace|local)", sc)
	}
	return s.layers[sc], nil
}

// mutate runs fn on a copy of the layer's tree. On error nothing changes.
// On success the copy replaces the tree, the change is journaled, the
// layer is persisted when valid and tree.changed is published.
func (s *Service) mutate(ctx context.Context, sc types.Scope, op, nodeID string, fn func(t *model.Tree) (string, error)) (MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.layer(sc)
	if err != nil {
		return MutationResult{}, err
	}

	work := l.tree.Clone()
	before := l.tree.Roots()
	id, err := fn(work)
	if err != nil {
		logging.Debug().Err(err).Str("scope", string(sc)).Str("op", op).Msg("mutation rejected")
		return MutationResult{}, err
	}
	if id == "" {
		id = nodeID
	}

	l.tree = work
	after := work.Roots()
	changed := !sameNodes(before, after)
	if changed {
		l.journal.Record(op, id, before, after)
		s.persist(ctx, sc, l)
		s.recompute()
	}

	res := s.result(sc, l, id, changed)
	if changed {
		s.publishChanged(sc, op, id, l.saved)
	}
	logging.Debug().Str("scope", string(sc)).Str("op", op).Str("node", id).Bool("saved", l.saved).Msg("mutation applied")
	return res, nil
}

func (s *Service) result(sc types.Scope, l *layer, id string, changed bool) MutationResult {
	undo, redo := l.journal.Len()
	res := MutationResult{
		Scope:   sc,
		ID:      id,
		Changed: changed,
		Saved:   l.saved,
		CanUndo: undo > 0,
		CanRedo: redo > 0,
	}
	if !l.saved {
		res.Message = l.problem
	}
	return res
}

func (s *Service) publishChanged(sc types.Scope, op, id string, saved bool) {
	s.bus.Publish(event.Event{
		Type: event.TreeChanged,
		Data: event.TreeChangedData{Scope: sc, Op: op, NodeID: id, Saved: saved},
	})
}

// sameNodes compares two root lists by their serialized form.
func sameNodes(a, b []*types.Node) bool {
	if a == nil {
		a = []*types.Node{}
	}
	if b == nil {
		b = []*types.Node{}
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
