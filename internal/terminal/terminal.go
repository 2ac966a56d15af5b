// Package terminal provides named, long-lived shell sessions that run
// terminal-mode commands one line at a time.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/telnet2/quickcmd/internal/event"
	"github.com/telnet2/quickcmd/internal/logging"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("terminal closed")

const (
	defaultQueueSize  = 64
	defaultBufferSize = 64 * 1024
)

// Publisher receives terminal output events.
type Publisher interface {
	Publish(event.Event)
}

// Terminal is one named shell. Lines sent to it run in order on a single
// interpreter, so working directory, variables and functions carry over
// between commands the way they do in an interactive shell.
type Terminal struct {
	name   string
	runner *interp.Runner
	queue  chan string
	output *tail
	pub    Publisher

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	pending int
	waiters []chan struct{}
	last    Result
	dir     string
}

// Result is the outcome of the most recent line.
type Result struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exitCode"`
	Output   string `json:"output"`
	Err      string `json:"error,omitempty"`
}

func newTerminal(parent context.Context, name string, opts Options) (*Terminal, error) {
	runnerOpts := []interp.RunnerOption{interp.StdIO(nil, nil, nil)}
	if len(opts.Env) > 0 {
		runnerOpts = append(runnerOpts, interp.Env(expand.ListEnviron(opts.Env...)))
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}
	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return nil, fmt.Errorf("create shell for %q: %w", name, err)
	}

	ctx, cancel := context.WithCancel(parent)
	t := &Terminal{
		name:   name,
		runner: runner,
		queue:  make(chan string, opts.queueSize()),
		output: newTail(opts.bufferSize()),
		pub:    opts.Publisher,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		dir:    runner.Dir,
	}
	go t.loop()
	return t, nil
}

// Name returns the terminal's name.
func (t *Terminal) Name() string { return t.name }

// Send queues text and returns without waiting for it to run. It returns
// ErrClosed when Close ran before the line was queued.
func (t *Terminal) Send(ctx context.Context, text string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.pending++
	t.mu.Unlock()

	select {
	case t.queue <- text:
	case <-ctx.Done():
		t.finish()
		return ctx.Err()
	case <-t.ctx.Done():
		t.finish()
		return ErrClosed
	}

	// Close may have won the race after the closed check above; the loop
	// is gone and the line will not run.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return nil
}

func (t *Terminal) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return
		case line := <-t.queue:
			t.run(line)
			t.finish()
		}
	}
}

func (t *Terminal) run(line string) {
	var buf bytes.Buffer
	w := io.MultiWriter(&buf, t.output)
	t.output.WriteString("$ " + line + "\n")

	res := Result{Command: line}
	prog, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(line), "")
	if err == nil {
		interp.StdIO(nil, w, w)(t.runner)
		err = t.runner.Run(t.ctx, prog)
	}
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			res.ExitCode = int(status)
		} else {
			res.ExitCode = 1
			res.Err = err.Error()
			fmt.Fprintf(w, "%v\n", err)
		}
	}
	res.Output = buf.String()

	t.mu.Lock()
	t.last = res
	t.dir = t.runner.Dir
	t.mu.Unlock()

	logging.Debug().Str("terminal", t.name).Str("command", line).Int("exit", res.ExitCode).Msg("terminal line finished")
	if t.pub != nil {
		t.pub.Publish(event.Event{
			Type: event.TerminalOutput,
			Data: event.TerminalOutputData{
				Terminal: t.name,
				Command:  line,
				Output:   res.Output,
				ExitCode: res.ExitCode,
			},
		})
	}
}

func (t *Terminal) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == 0 {
		return
	}
	t.pending--
	if t.pending == 0 {
		for _, w := range t.waiters {
			close(w)
		}
		t.waiters = nil
	}
}

// Wait blocks until every queued line has run.
func (t *Terminal) Wait(ctx context.Context) error {
	t.mu.Lock()
	if t.pending == 0 {
		t.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Output returns the buffered transcript, oldest bytes dropped first.
func (t *Terminal) Output() string {
	return t.output.String()
}

// Last returns the result of the most recently finished line.
func (t *Terminal) Last() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Info summarizes the terminal.
func (t *Terminal) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{Name: t.name, Dir: t.dir, Pending: t.pending, Closed: t.closed}
}

// Close stops the worker. Queued lines that have not started are dropped.
func (t *Terminal) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	<-t.done

	t.mu.Lock()
	t.pending = 0
	for len(t.queue) > 0 {
		<-t.queue
	}
	for _, w := range t.waiters {
		close(w)
	}
	t.waiters = nil
	t.mu.Unlock()
}

// Info describes a terminal for listings.
type Info struct {
	Name    string `json:"name"`
	Dir     string `json:"dir"`
	Pending int    `json:"pending"`
	Closed  bool   `json:"closed"`
}
