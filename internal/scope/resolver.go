// Package scope merges the Global, Workspace and Local command layers into
// the effective tree used for display and execution.
//
// Layers are merged by slot, the position of a root entry in its layer.
// For each slot the entry of the highest-precedence layer that has one wins
// whole; there is no field-level merge. A layer with no entry at a slot
// falls through to the next lower layer.
package scope

import (
	"strings"

	"github.com/telnet2/quickcmd/pkg/types"
)

// Layers holds the root list of each layer. Missing keys are empty layers.
type Layers map[types.Scope][]*types.Node

// Entry is one root slot of the effective tree.
type Entry struct {
	Slot  int         `json:"slot"`
	Scope types.Scope `json:"scope"`
	Node  *types.Node `json:"node"`
}

// Effective is a point-in-time snapshot of the merged tree.
type Effective struct {
	Entries []Entry `json:"entries"`
}

// Resolve merges layers. The result holds deep copies and does not track
// later writes to any layer.
func Resolve(layers Layers) *Effective {
	slots := 0
	for _, s := range types.Scopes {
		if n := len(layers[s]); n > slots {
			slots = n
		}
	}

	eff := &Effective{Entries: make([]Entry, 0, slots)}
	for slot := 0; slot < slots; slot++ {
		for i := len(types.Scopes) - 1; i >= 0; i-- {
			s := types.Scopes[i]
			if slot < len(layers[s]) && layers[s][slot] != nil {
				eff.Entries = append(eff.Entries, Entry{
					Slot:  slot,
					Scope: s,
					Node:  layers[s][slot].Clone(),
				})
				break
			}
		}
	}
	return eff
}

// Nodes returns the root nodes of the effective tree.
func (e *Effective) Nodes() []*types.Node {
	nodes := make([]*types.Node, len(e.Entries))
	for i, entry := range e.Entries {
		nodes[i] = entry.Node
	}
	return nodes
}

// Match is a node located in the effective tree.
type Match struct {
	Node      *types.Node
	Ancestors []*types.Node // root first
	Scope     types.Scope   // layer the root entry came from
}

// Find returns the first node with id in display order.
func (e *Effective) Find(id string) (Match, bool) {
	return e.find(func(n *types.Node) bool { return n.ID == id })
}

// FindByName returns the first node whose label (icon token stripped)
// equals name, ignoring case.
func (e *Effective) FindByName(name string) (Match, bool) {
	name = strings.TrimSpace(name)
	return e.find(func(n *types.Node) bool {
		return strings.EqualFold(n.Label(), name) || strings.EqualFold(n.Name, name)
	})
}

func (e *Effective) find(pred func(*types.Node) bool) (Match, bool) {
	for _, entry := range e.Entries {
		var m Match
		found := false
		types.Walk([]*types.Node{entry.Node}, func(n *types.Node, path []*types.Node) bool {
			if pred(n) {
				m = Match{Node: n, Ancestors: path, Scope: entry.Scope}
				found = true
				return false
			}
			return true
		})
		if found {
			return m, true
		}
	}
	return Match{}, false
}

// Paths returns the slash-joined label path of every node, in display
// order, keyed by node id.
func (e *Effective) Paths() []NodePath {
	var out []NodePath
	for _, entry := range e.Entries {
		types.Walk([]*types.Node{entry.Node}, func(n *types.Node, path []*types.Node) bool {
			parts := make([]string, 0, len(path)+1)
			for _, a := range path {
				parts = append(parts, a.Label())
			}
			parts = append(parts, n.Label())
			out = append(out, NodePath{ID: n.ID, Path: strings.Join(parts, "/"), Scope: entry.Scope, Node: n})
			return true
		})
	}
	return out
}

// NodePath pairs a node with its label path.
type NodePath struct {
	ID    string
	Path  string
	Scope types.Scope
	Node  *types.Node
}
