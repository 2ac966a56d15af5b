// Package model holds one configuration layer's quick command tree and
// enforces its structural rules on every write.
package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/telnet2/quickcmd/internal/shortcut"
	"github.com/telnet2/quickcmd/pkg/types"
)

// Tree is the mutable tree of one layer. It is not safe for concurrent use;
// callers serialize access.
type Tree struct {
	roots   []*types.Node
	retired map[string]struct{}
	pending map[string]pendingConversion
	newID   func() string
}

// Option configures a Tree.
type Option func(*Tree)

// WithIDGenerator overrides ULID generation (tests).
func WithIDGenerator(fn func() string) Option {
	return func(t *Tree) {
		t.newID = fn
	}
}

// New builds a tree from a deep copy of roots. Nodes without an id, or
// whose id already appeared earlier in the walk, are assigned a fresh one.
func New(roots []*types.Node, opts ...Option) *Tree {
	t := &Tree{
		roots:   types.CloneNodes(roots),
		retired: make(map[string]struct{}),
		pending: make(map[string]pendingConversion),
		newID:   func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(t)
	}

	seen := make(map[string]struct{})
	types.Walk(t.roots, func(n *types.Node, _ []*types.Node) bool {
		if _, dup := seen[n.ID]; n.ID == "" || dup {
			n.ID = t.freshID(seen)
		}
		seen[n.ID] = struct{}{}
		return true
	})
	return t
}

// freshID returns an id unused in the tree, in taken and in the retired set.
func (t *Tree) freshID(taken map[string]struct{}) string {
	for {
		id := t.newID()
		if _, ok := taken[id]; ok {
			continue
		}
		if _, ok := t.retired[id]; ok {
			continue
		}
		if n, _, _ := t.find(id); n != nil {
			continue
		}
		return id
	}
}

// Roots returns a deep copy of the root list.
func (t *Tree) Roots() []*types.Node {
	return types.CloneNodes(t.roots)
}

// Snapshot is an alias of Roots used by the change journal.
func (t *Tree) Snapshot() []*types.Node {
	return t.Roots()
}

// Restore replaces the roots with a copy of snapshot. Retired ids stay
// retired and pending conversions are dropped.
func (t *Tree) Restore(snapshot []*types.Node) {
	t.roots = types.CloneNodes(snapshot)
	t.pending = make(map[string]pendingConversion)
}

// Clone returns an independent copy of the tree, pending conversions
// included.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		roots:   types.CloneNodes(t.roots),
		retired: make(map[string]struct{}, len(t.retired)),
		pending: make(map[string]pendingConversion, len(t.pending)),
		newID:   t.newID,
	}
	for id := range t.retired {
		c.retired[id] = struct{}{}
	}
	for tok, p := range t.pending {
		c.pending[tok] = p
	}
	return c
}

// Len returns the number of root entries.
func (t *Tree) Len() int {
	return len(t.roots)
}

// Find returns a copy of the node with id.
func (t *Tree) Find(id string) (*types.Node, bool) {
	n, _, _ := t.find(id)
	if n == nil {
		return nil, false
	}
	return n.Clone(), true
}

// ParentID returns the id of the node's parent, "" for root entries.
func (t *Tree) ParentID(id string) (string, error) {
	n, parent, _ := t.find(id)
	if n == nil {
		return "", &NotFoundError{ID: id}
	}
	if parent == nil {
		return "", nil
	}
	return parent.ID, nil
}

// IsAncestor reports whether descendantID lies strictly inside the subtree
// of ancestorID.
func (t *Tree) IsAncestor(ancestorID, descendantID string) bool {
	a, _, _ := t.find(ancestorID)
	if a == nil {
		return false
	}
	found := false
	types.Walk(a.Children, func(n *types.Node, _ []*types.Node) bool {
		if n.ID == descendantID {
			found = true
			return false
		}
		return true
	})
	return found
}

// Validate runs the save-time checks over the whole tree.
func (t *Tree) Validate() error {
	return ValidateNodes(t.roots)
}

// find locates a node, its parent (nil at root) and its index among its
// siblings.
func (t *Tree) find(id string) (node, parent *types.Node, index int) {
	if id == "" {
		return nil, nil, -1
	}
	var path []*types.Node
	types.Walk(t.roots, func(n *types.Node, p []*types.Node) bool {
		if n.ID == id {
			node = n
			path = p
			return false
		}
		return true
	})
	if node == nil {
		return nil, nil, -1
	}
	if len(path) > 0 {
		parent = path[len(path)-1]
	}
	for i, s := range t.siblings(parent) {
		if s == node {
			index = i
			break
		}
	}
	return node, parent, index
}

func (t *Tree) siblings(parent *types.Node) []*types.Node {
	if parent == nil {
		return t.roots
	}
	return parent.Children
}

func (t *Tree) setSiblings(parent *types.Node, nodes []*types.Node) {
	if parent == nil {
		t.roots = nodes
		return
	}
	parent.Children = nodes
}

// lookupParent resolves a parent id; "" is the root.
func (t *Tree) lookupParent(parentID string) (*types.Node, error) {
	if parentID == "" {
		return nil, nil
	}
	parent, _, _ := t.find(parentID)
	if parent == nil {
		return nil, &NotFoundError{ID: parentID}
	}
	if !parent.IsGroup() {
		return nil, invalid("parentId", parentID, "parent %s is not a group", parentID)
	}
	return parent, nil
}

// Add creates a node under parentID ("" for root) and returns its id.
// Group payloads must carry at least one child; children are created with
// fresh ids.
func (t *Tree) Add(parentID string, p types.NodePayload) (string, error) {
	parent, err := t.lookupParent(parentID)
	if err != nil {
		return "", err
	}

	taken := make(map[string]struct{})
	node, err := t.build(p, taken)
	if err != nil {
		return "", err
	}

	if r := shortcut.Check(t.siblings(parent), node.ID, node.Shortcut); !r.Ok() {
		return "", conflictError(node.ID, node.Shortcut, r.OwnerID)
	}

	t.setSiblings(parent, append(t.siblings(parent), node))
	return node.ID, nil
}

// build turns a payload into a detached node with fresh ids.
func (t *Tree) build(p types.NodePayload, taken map[string]struct{}) (*types.Node, error) {
	kind := payloadKind(p)
	if err := checkFields(p, kind, ""); err != nil {
		return nil, err
	}

	n := &types.Node{ID: t.freshID(taken)}
	taken[n.ID] = struct{}{}
	n.Kind = kind
	apply(n, p)

	if kind == types.KindGroup {
		if len(p.Children) == 0 {
			return nil, invalid("group", "", MsgEmptyGroup)
		}
		for _, cp := range p.Children {
			child, err := t.build(cp, taken)
			if err != nil {
				return nil, err
			}
			if r := shortcut.Check(n.Children, child.ID, child.Shortcut); !r.Ok() {
				return nil, conflictError(child.ID, child.Shortcut, r.OwnerID)
			}
			n.Children = append(n.Children, child)
		}
	}
	return n, nil
}

// apply copies editable fields from p onto n according to n.Kind.
func apply(n *types.Node, p types.NodePayload) {
	n.Name = strings.TrimSpace(p.Name)
	n.Shortcut = strings.TrimSpace(p.Shortcut)
	n.Color = p.Color

	switch n.Kind {
	case types.KindCommand:
		n.Command = p.Command
		n.ExecutionMode = p.ExecutionMode
		n.TerminalName = p.TerminalName
		n.ExecuteSimultaneously = false
	case types.KindGroup:
		n.ExecuteSimultaneously = p.ExecuteSimultaneously
		n.Command = ""
		n.ExecutionMode = ""
		n.TerminalName = ""
	}

	for k, v := range p.Extra {
		if isJSONNull(v) {
			delete(n.Extra, k)
			continue
		}
		if n.Extra == nil {
			n.Extra = make(map[string]json.RawMessage)
		}
		n.Extra[k] = v
	}
}

func isJSONNull(v json.RawMessage) bool {
	return len(v) == 0 || string(bytes.TrimSpace(v)) == "null"
}

// Update replaces the editable fields of id. Kind changes go through
// ConvertKind; a group keeps its children.
func (t *Tree) Update(id string, p types.NodePayload) error {
	n, parent, _ := t.find(id)
	if n == nil {
		return &NotFoundError{ID: id}
	}
	if p.Kind != "" && p.Kind != n.Kind {
		return invalid("kind", id, "cannot change kind from %s to %s with an update; convert the node instead", n.Kind, p.Kind)
	}
	if err := checkFields(p, n.Kind, id); err != nil {
		return err
	}
	if r := shortcut.Check(t.siblings(parent), id, p.Shortcut); !r.Ok() {
		return conflictError(id, p.Shortcut, r.OwnerID)
	}

	apply(n, p)
	return nil
}

// Delete removes id and its descendants and retires every removed id.
// The last child of a group cannot be deleted.
func (t *Tree) Delete(id string) error {
	n, parent, index := t.find(id)
	if n == nil {
		return &NotFoundError{ID: id}
	}
	if parent != nil && len(parent.Children) == 1 {
		return invalid("group", parent.ID, MsgEmptyGroup)
	}

	siblings := t.siblings(parent)
	t.setSiblings(parent, append(siblings[:index:index], siblings[index+1:]...))
	t.retire(n)
	return nil
}

func (t *Tree) retire(n *types.Node) {
	types.Walk([]*types.Node{n}, func(r *types.Node, _ []*types.Node) bool {
		t.retired[r.ID] = struct{}{}
		return true
	})
	for tok, p := range t.pending {
		if _, gone := t.retired[p.id]; gone {
			delete(t.pending, tok)
		}
	}
}

// Move places id at index under newParentID ("" for root). The index is
// clamped to the destination list after the node has been detached.
func (t *Tree) Move(id, newParentID string, index int) error {
	n, oldParent, oldIndex := t.find(id)
	if n == nil {
		return &NotFoundError{ID: id}
	}
	if newParentID == id || (newParentID != "" && t.IsAncestor(id, newParentID)) {
		return &CycleError{ID: id, ParentID: newParentID}
	}
	newParent, err := t.lookupParent(newParentID)
	if err != nil {
		return err
	}

	sameParent := oldParent == newParent
	if !sameParent {
		if oldParent != nil && len(oldParent.Children) == 1 {
			return invalid("group", oldParent.ID, MsgEmptyGroup)
		}
		if r := shortcut.Check(t.siblings(newParent), id, n.Shortcut); !r.Ok() {
			return conflictError(id, n.Shortcut, r.OwnerID)
		}
	}

	old := t.siblings(oldParent)
	t.setSiblings(oldParent, append(old[:oldIndex:oldIndex], old[oldIndex+1:]...))

	dest := t.siblings(newParent)
	if index < 0 {
		index = 0
	}
	if index > len(dest) {
		index = len(dest)
	}
	moved := make([]*types.Node, 0, len(dest)+1)
	moved = append(moved, dest[:index]...)
	moved = append(moved, n)
	moved = append(moved, dest[index:]...)
	t.setSiblings(newParent, moved)
	return nil
}
