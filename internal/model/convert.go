package model

import (
	"slices"

	"github.com/google/uuid"

	"github.com/telnet2/quickcmd/pkg/types"
)

// ConversionResult reports what a ConvertKind call did. When
// RequiresConfirmation is set nothing changed yet: the caller must pass
// Token to ConfirmConvert.
type ConversionResult struct {
	RequiresConfirmation bool   `json:"requiresConfirmation"`
	Token                string `json:"token,omitempty"`
	DiscardCount         int    `json:"discardCount,omitempty"`
}

type pendingConversion struct {
	id       string
	children []string
}

// ConvertKind switches a node between command and group.
//
// Command to group is applied at once and leaves an empty group that must
// receive a child before the tree validates again. Group to command with
// children only registers a pending conversion; the descendants are
// discarded by ConfirmConvert.
func (t *Tree) ConvertKind(id string, target types.Kind) (ConversionResult, error) {
	if !target.Valid() {
		return ConversionResult{}, invalid("target", id, "unknown node kind %q", target)
	}
	n, _, _ := t.find(id)
	if n == nil {
		return ConversionResult{}, &NotFoundError{ID: id}
	}
	if n.Kind == target {
		return ConversionResult{}, nil
	}

	if target == types.KindGroup {
		toGroup(n)
		return ConversionResult{}, nil
	}

	if len(n.Children) == 0 {
		toCommand(n)
		return ConversionResult{}, nil
	}

	token := uuid.NewString()
	t.pending[token] = pendingConversion{
		id:       id,
		children: childIDs(n),
	}
	return ConversionResult{
		RequiresConfirmation: true,
		Token:                token,
		DiscardCount:         len(n.Children),
	}, nil
}

// ConfirmConvert settles a pending conversion. With accept the group's
// children recorded at request time are discarded and the node becomes a
// command; without it the token is dropped and the tree is untouched.
func (t *Tree) ConfirmConvert(token string, accept bool) error {
	p, ok := t.pending[token]
	if !ok {
		return invalid("token", "", "unknown or expired confirmation token")
	}
	delete(t.pending, token)
	if !accept {
		return nil
	}

	n, _, _ := t.find(p.id)
	if n == nil {
		return &NotFoundError{ID: p.id}
	}
	if !n.IsGroup() || !slices.Equal(childIDs(n), p.children) {
		return invalid("token", p.id, "the group changed since the conversion was requested; request it again")
	}

	for _, c := range n.Children {
		t.retire(c)
	}
	toCommand(n)
	return nil
}

// Pending reports whether a confirmation token is outstanding.
func (t *Tree) Pending(token string) bool {
	_, ok := t.pending[token]
	return ok
}

func childIDs(n *types.Node) []string {
	ids := make([]string, len(n.Children))
	for i, c := range n.Children {
		ids[i] = c.ID
	}
	return ids
}

func toGroup(n *types.Node) {
	n.Kind = types.KindGroup
	n.Command = ""
	n.ExecutionMode = ""
	n.TerminalName = ""
	n.Children = []*types.Node{}
}

func toCommand(n *types.Node) {
	n.Kind = types.KindCommand
	n.ExecuteSimultaneously = false
	n.Children = nil
}
