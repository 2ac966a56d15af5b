// Package dispatch runs commands and groups of the effective tree against
// the host: terminals, host commands and text insertion.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/internal/model"
	"github.com/telnet2/quickcmd/pkg/types"
)

// DefaultTerminalName is used when a terminal-mode command names none.
const DefaultTerminalName = "Quick Commands"

// Terminal accepts command text. Send returns once the text is queued.
type Terminal interface {
	Send(ctx context.Context, text string) error
}

// Terminals finds a terminal by name or creates it.
type Terminals interface {
	CreateOrReuse(ctx context.Context, name string) (Terminal, error)
}

// HostCommands runs an editor-API command by its identifier.
type HostCommands interface {
	Execute(ctx context.Context, id string) error
}

// TextInserter places text at the host's cursor.
type TextInserter interface {
	InsertText(ctx context.Context, text string) error
}

// Dispatcher maps nodes to host actions. It never mutates the nodes it is
// given.
type Dispatcher struct {
	terminals       Terminals
	host            HostCommands
	inserter        TextInserter
	reporter        Reporter
	defaultTerminal string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReporter sets the sink for per-node reports.
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) { d.reporter = r }
}

// WithDefaultTerminal overrides DefaultTerminalName.
func WithDefaultTerminal(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.defaultTerminal = name
		}
	}
}

// New creates a dispatcher. Any of the host interfaces may be nil; nodes
// that need a missing one fail with an ExecutionError.
func New(terminals Terminals, host HostCommands, inserter TextInserter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		terminals:       terminals,
		host:            host,
		inserter:        inserter,
		reporter:        nopReporter{},
		defaultTerminal: DefaultTerminalName,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts executing n and returns at once. The node is copied
// first, so later edits to the tree do not affect a running execution.
func (d *Dispatcher) Dispatch(ctx context.Context, n *types.Node) *Execution {
	exec := newExecution(uuid.NewString())
	node := n.Clone()

	exec.wg.Add(1)
	go func() {
		defer exec.wg.Done()
		d.run(ctx, exec, node, false)
	}()
	go func() {
		exec.wg.Wait()
		close(exec.done)
	}()
	return exec
}

// run dispatches one node and returns when its own dispatch is complete:
// for a command when the host accepted it, for a sequential group when
// every child finished, for a simultaneous group once every child started.
// A nested group with an invalid direct child is skipped whole; the
// dispatched root instead skips only its invalid children.
func (d *Dispatcher) run(ctx context.Context, exec *Execution, n *types.Node, nested bool) bool {
	if err := ctx.Err(); err != nil {
		d.skip(exec, n, err)
		return false
	}
	if n.IsGroup() {
		return d.runGroup(ctx, exec, n, nested)
	}

	if strings.TrimSpace(n.Command) == "" {
		d.skip(exec, n, errors.New("command text is empty"))
		return false
	}
	d.report(exec, n, StatusStarted, nil)
	if err := d.runCommand(ctx, n); err != nil {
		d.fail(exec, n, err)
		return false
	}
	d.report(exec, n, StatusSucceeded, nil)
	return true
}

func (d *Dispatcher) runGroup(ctx context.Context, exec *Execution, g *types.Node, nested bool) bool {
	check := model.ValidateGroup
	if nested {
		check = model.ValidateLevel
	}
	if err := check(g); err != nil {
		d.skip(exec, g, err)
		return false
	}

	d.report(exec, g, StatusStarted, nil)

	if g.ExecuteSimultaneously {
		for _, child := range g.Children {
			exec.wg.Add(1)
			go func(c *types.Node) {
				defer exec.wg.Done()
				d.run(ctx, exec, c, true)
			}(child)
		}
		d.report(exec, g, StatusSucceeded, nil)
		return true
	}

	failed := 0
	for _, child := range g.Children {
		if !d.run(ctx, exec, child, true) {
			failed++
		}
	}
	if failed > 0 {
		d.report(exec, g, StatusFailed, fmt.Errorf("%d of %d commands failed", failed, len(g.Children)))
		return false
	}
	d.report(exec, g, StatusSucceeded, nil)
	return true
}

func (d *Dispatcher) runCommand(ctx context.Context, n *types.Node) error {
	switch n.Mode() {
	case types.ModeTerminal:
		if d.terminals == nil {
			return errors.New("no terminal host available")
		}
		name := n.TerminalName
		if name == "" {
			name = d.defaultTerminal
		}
		term, err := d.terminals.CreateOrReuse(ctx, name)
		if err != nil {
			return fmt.Errorf("open terminal %q: %w", name, err)
		}
		return term.Send(ctx, n.Command)

	case types.ModeEditorAPI:
		if d.host == nil {
			return errors.New("no host command registry available")
		}
		return d.host.Execute(ctx, n.Command)

	case types.ModeInsertOnly:
		if d.inserter == nil {
			return errors.New("no text inserter available")
		}
		return d.inserter.InsertText(ctx, n.Command)

	default:
		return fmt.Errorf("unknown execution mode %q", n.ExecutionMode)
	}
}

func (d *Dispatcher) fail(exec *Execution, n *types.Node, err error) {
	logging.Warn().Err(err).Str("node", n.ID).Str("name", n.Name).Msg("command failed")
	exec.addError(&ExecutionError{NodeID: n.ID, Name: n.Name, Err: err})
	d.report(exec, n, StatusFailed, err)
}

func (d *Dispatcher) skip(exec *Execution, n *types.Node, err error) {
	logging.Warn().Err(err).Str("node", n.ID).Str("name", n.Name).Msg("node skipped")
	exec.addError(&ExecutionError{NodeID: n.ID, Name: n.Name, Err: err, Skipped: true})
	d.report(exec, n, StatusSkipped, err)
}

func (d *Dispatcher) report(exec *Execution, n *types.Node, status Status, err error) {
	r := Report{
		ExecutionID: exec.ID,
		NodeID:      n.ID,
		Name:        n.Name,
		Status:      status,
		Err:         err,
	}
	if err != nil {
		r.Message = err.Error()
	}
	d.reporter.Report(r)
}

// Execution tracks one Dispatch call including fire-and-forget children.
type Execution struct {
	ID string

	wg   sync.WaitGroup
	done chan struct{}

	mu   sync.Mutex
	errs []error
}

func newExecution(id string) *Execution {
	return &Execution{ID: id, done: make(chan struct{})}
}

func (e *Execution) addError(err error) {
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
}

// Done is closed once all work of the execution has finished.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the execution finishes and returns every failure
// joined, or nil.
func (e *Execution) Wait() error {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.errs...)
}

// ExecutionError is the failure of one node.
type ExecutionError struct {
	NodeID  string
	Name    string
	Skipped bool
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Skipped {
		return fmt.Sprintf("%s skipped: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
