package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnet2/quickcmd/pkg/types"
)

type fakeHost struct {
	mu       sync.Mutex
	sent     []string // "terminal:text", "host:id", "insert:text"
	started  chan string
	gates    map[string]chan struct{}
	failures map[string]error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		started:  make(chan string, 16),
		gates:    map[string]chan struct{}{},
		failures: map[string]error{},
	}
}

func (h *fakeHost) gate(text string) chan struct{} {
	ch := make(chan struct{})
	h.gates[text] = ch
	return ch
}

func (h *fakeHost) record(entry, text string) error {
	h.started <- text
	if g, ok := h.gates[text]; ok {
		<-g
	}
	h.mu.Lock()
	h.sent = append(h.sent, entry)
	h.mu.Unlock()
	return h.failures[text]
}

func (h *fakeHost) Sent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent...)
}

type fakeTerminal struct {
	name string
	host *fakeHost
}

func (t *fakeTerminal) Send(_ context.Context, text string) error {
	return t.host.record(t.name+":"+text, text)
}

func (h *fakeHost) CreateOrReuse(_ context.Context, name string) (Terminal, error) {
	return &fakeTerminal{name: name, host: h}, nil
}

func (h *fakeHost) Execute(_ context.Context, id string) error {
	return h.record("host:"+id, id)
}

func (h *fakeHost) InsertText(_ context.Context, text string) error {
	return h.record("insert:"+text, text)
}

func cmd(id, command string) *types.Node {
	return &types.Node{ID: id, Kind: types.KindCommand, Name: id, Command: command}
}

func group(id string, simultaneous bool, children ...*types.Node) *types.Node {
	return &types.Node{ID: id, Kind: types.KindGroup, Name: id, ExecuteSimultaneously: simultaneous, Children: children}
}

func waitStarted(t *testing.T, h *fakeHost) string {
	t.Helper()
	select {
	case s := <-h.started:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a command to start")
		return ""
	}
}

func assertNotStarted(t *testing.T, h *fakeHost) {
	t.Helper()
	select {
	case s := <-h.started:
		t.Fatalf("%q started too early", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatch_Modes(t *testing.T) {
	h := newFakeHost()
	d := New(h, h, h)

	term := cmd("t", "make build")
	named := cmd("n", "npm test")
	named.TerminalName = "tests"
	api := cmd("a", "workbench.action.files.save")
	api.ExecutionMode = types.ModeEditorAPI
	ins := cmd("i", "rm -rf dist")
	ins.ExecutionMode = types.ModeInsertOnly

	exec := d.Dispatch(context.Background(), group("g", false, term, named, api, ins))
	require.NoError(t, exec.Wait())

	assert.Equal(t, []string{
		"Quick Commands:make build",
		"tests:npm test",
		"host:workbench.action.files.save",
		"insert:rm -rf dist",
	}, h.Sent())
}

func TestDispatch_SequentialWaitsForPrevious(t *testing.T) {
	h := newFakeHost()
	release := h.gate("one")
	d := New(h, h, h)

	exec := d.Dispatch(context.Background(), group("g", false, cmd("1", "one"), cmd("2", "two"), cmd("3", "three")))

	assert.Equal(t, "one", waitStarted(t, h))
	assertNotStarted(t, h)

	close(release)
	assert.Equal(t, "two", waitStarted(t, h))
	assert.Equal(t, "three", waitStarted(t, h))
	require.NoError(t, exec.Wait())
	assert.Len(t, h.Sent(), 3)
}

func TestDispatch_SimultaneousStartsAll(t *testing.T) {
	h := newFakeHost()
	gates := []chan struct{}{h.gate("one"), h.gate("two"), h.gate("three")}
	d := New(h, h, h)

	exec := d.Dispatch(context.Background(), group("g", true, cmd("1", "one"), cmd("2", "two"), cmd("3", "three")))

	started := map[string]bool{}
	for i := 0; i < 3; i++ {
		started[waitStarted(t, h)] = true
	}
	assert.Len(t, started, 3, "all children start before any completes")

	select {
	case <-exec.Done():
		t.Fatal("execution finished while children still run")
	default:
	}

	for _, g := range gates {
		close(g)
	}
	require.NoError(t, exec.Wait())
}

func TestDispatch_FailureDoesNotStopSiblings(t *testing.T) {
	h := newFakeHost()
	h.failures["two"] = errors.New("boom")
	rec := &Recorder{}
	d := New(h, h, h, WithReporter(rec))

	exec := d.Dispatch(context.Background(), group("g", false, cmd("1", "one"), cmd("2", "two"), cmd("3", "three")))
	err := exec.Wait()
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "2", execErr.NodeID)
	assert.Len(t, h.Sent(), 3)

	statuses := map[string]Status{}
	for _, r := range rec.Reports() {
		statuses[r.NodeID] = r.Status
	}
	assert.Equal(t, StatusSucceeded, statuses["1"])
	assert.Equal(t, StatusFailed, statuses["2"])
	assert.Equal(t, StatusSucceeded, statuses["3"])
	assert.Equal(t, StatusFailed, statuses["g"])
}

func TestDispatch_InvalidNestedGroupSkipped(t *testing.T) {
	h := newFakeHost()
	rec := &Recorder{}
	d := New(h, h, h, WithReporter(rec))

	bad := group("bad", false, cmd("x", "x"), cmd("y", "y"))
	bad.Children[0].Shortcut = "k"
	bad.Children[1].Shortcut = "K"

	exec := d.Dispatch(context.Background(), group("root", false, cmd("1", "one"), bad, cmd("2", "two")))
	err := exec.Wait()
	require.Error(t, err)
	assert.Equal(t, []string{"Quick Commands:one", "Quick Commands:two"}, h.Sent())

	var skipped []Report
	for _, r := range rec.Reports() {
		if r.Status == StatusSkipped {
			skipped = append(skipped, r)
		}
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad", skipped[0].NodeID)
}

func TestDispatch_NestedGroupWithInvalidChildSkippedWhole(t *testing.T) {
	h := newFakeHost()
	rec := &Recorder{}
	d := New(h, h, h, WithReporter(rec))

	inner := group("inner", false, cmd("ok", "echo ok"), cmd("draft", ""))
	exec := d.Dispatch(context.Background(), group("outer", false, inner, cmd("after", "echo after")))

	err := exec.Wait()
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "inner", execErr.NodeID)
	assert.True(t, execErr.Skipped)
	assert.Equal(t, []string{"Quick Commands:echo after"}, h.Sent())

	var skipped []Report
	for _, r := range rec.Reports() {
		if r.Status == StatusSkipped {
			skipped = append(skipped, r)
		}
		assert.NotEqual(t, "ok", r.NodeID, "no child of a skipped group is dispatched")
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, "inner", skipped[0].NodeID)
	assert.Contains(t, skipped[0].Message, "Command is required")
}

func TestDispatch_RootGroupSkipsOnlyInvalidChild(t *testing.T) {
	h := newFakeHost()
	d := New(h, h, h)

	exec := d.Dispatch(context.Background(), group("root", false, cmd("ok", "echo ok"), cmd("draft", "")))
	require.Error(t, exec.Wait())
	assert.Equal(t, []string{"Quick Commands:echo ok"}, h.Sent())
}

func TestDispatch_NestedGroupUsesOwnFlag(t *testing.T) {
	h := newFakeHost()
	gateA := h.gate("a")
	gateB := h.gate("b")
	d := New(h, h, h)

	inner := group("inner", true, cmd("a", "a"), cmd("b", "b"))
	exec := d.Dispatch(context.Background(), group("outer", false, inner, cmd("c", "c")))

	// a and b block, so c can only start because the inner group returned
	// after starting its children.
	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		got[waitStarted(t, h)] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, got)

	close(gateA)
	close(gateB)
	require.NoError(t, exec.Wait())
}

func TestDispatch_DoesNotMutateInput(t *testing.T) {
	h := newFakeHost()
	d := New(h, h, h)
	n := cmd("1", "one")
	require.NoError(t, d.Dispatch(context.Background(), n).Wait())
	assert.Equal(t, cmd("1", "one"), n)
}

func TestDispatch_MissingHost(t *testing.T) {
	d := New(nil, nil, nil)
	err := d.Dispatch(context.Background(), cmd("1", "one")).Wait()
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Error(), "no terminal host")
}

func TestDispatch_CancelledContextSkips(t *testing.T) {
	h := newFakeHost()
	d := New(h, h, h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Dispatch(ctx, cmd("1", "one")).Wait()
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.Sent())
}
