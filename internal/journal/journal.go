// Package journal keeps the undo/redo history of one command layer.
package journal

import (
	"sync"
	"time"

	"github.com/telnet2/quickcmd/pkg/types"
)

// DefaultDepth bounds the undo stack when New is given zero.
const DefaultDepth = 100

// Snapshot is the full root list of a layer at one point in time.
type Snapshot []*types.Node

// Entry records one accepted mutation.
type Entry struct {
	Op        string    `json:"op"`
	NodeID    string    `json:"nodeId,omitempty"`
	At        time.Time `json:"at"`
	Additions int       `json:"additions"`
	Deletions int       `json:"deletions"`
	Diff      string    `json:"diff,omitempty"`

	before Snapshot
	after  Snapshot
}

// Journal is a bounded pair of undo and redo stacks. Entries are only
// recorded for mutations that passed validation, so undo and redo restore
// exactly the layer states the user saw.
type Journal struct {
	mu    sync.Mutex
	depth int
	undo  []Entry
	redo  []Entry
	label string
}

// New creates a journal holding at most depth undo entries. label names
// the layer in diff headers.
func New(label string, depth int) *Journal {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Journal{depth: depth, label: label}
}

// Record pushes a before/after pair and clears the redo stack.
func (j *Journal) Record(op, nodeID string, before, after []*types.Node) {
	b, a := Snapshot(types.CloneNodes(before)), Snapshot(types.CloneNodes(after))
	diff, add, del := buildDiff(j.label, b, a)

	j.mu.Lock()
	defer j.mu.Unlock()

	j.undo = append(j.undo, Entry{
		Op:        op,
		NodeID:    nodeID,
		At:        time.Now(),
		Additions: add,
		Deletions: del,
		Diff:      diff,
		before:    b,
		after:     a,
	})
	if over := len(j.undo) - j.depth; over > 0 {
		j.undo = append([]Entry(nil), j.undo[over:]...)
	}
	j.redo = nil
}

// Undo pops the latest entry and returns the layer state before it.
func (j *Journal) Undo() (Snapshot, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.undo) == 0 {
		return nil, false
	}
	e := j.undo[len(j.undo)-1]
	j.undo = j.undo[:len(j.undo)-1]
	j.redo = append(j.redo, e)
	return types.CloneNodes(e.before), true
}

// Redo re-applies the most recently undone entry.
func (j *Journal) Redo() (Snapshot, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.redo) == 0 {
		return nil, false
	}
	e := j.redo[len(j.redo)-1]
	j.redo = j.redo[:len(j.redo)-1]
	j.undo = append(j.undo, e)
	return types.CloneNodes(e.after), true
}

// CanUndo reports whether Undo would succeed.
func (j *Journal) CanUndo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.undo) > 0
}

// CanRedo reports whether Redo would succeed.
func (j *Journal) CanRedo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.redo) > 0
}

// Len returns the undo and redo depths.
func (j *Journal) Len() (undo, redo int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.undo), len(j.redo)
}

// History lists the undo stack, newest first.
func (j *Journal) History() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, 0, len(j.undo))
	for i := len(j.undo) - 1; i >= 0; i-- {
		e := j.undo[i]
		e.before, e.after = nil, nil
		out = append(out, e)
	}
	return out
}

// Reset drops both stacks. Used when a layer is reloaded from disk.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo, j.redo = nil, nil
}
