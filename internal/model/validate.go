package model

import (
	"strings"

	"github.com/telnet2/quickcmd/internal/shortcut"
	"github.com/telnet2/quickcmd/pkg/types"
)

// payloadKind resolves the kind a payload describes.
func payloadKind(p types.NodePayload) types.Kind {
	if p.Kind != "" {
		return p.Kind
	}
	if len(p.Children) > 0 {
		return types.KindGroup
	}
	return types.KindCommand
}

// checkFields runs the field-level checks shared by add and update.
func checkFields(p types.NodePayload, kind types.Kind, nodeID string) error {
	if !kind.Valid() {
		return invalid("kind", nodeID, "unknown node kind %q", kind)
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", nodeID, "Name is required")
	}
	if err := shortcut.Validate(p.Shortcut); err != nil {
		return invalid("shortcut", nodeID, "%s", err.Error())
	}
	if kind == types.KindCommand {
		if strings.TrimSpace(p.Command) == "" {
			return invalid("command", nodeID, "Command is required")
		}
		if !p.ExecutionMode.Valid() {
			return invalid("executionMode", nodeID, "unknown execution mode %q", p.ExecutionMode)
		}
	}
	return nil
}

func conflictError(nodeID, candidate, ownerID string) *ValidationError {
	return &ValidationError{
		Field:   "shortcut",
		NodeID:  nodeID,
		OwnerID: ownerID,
		Message: "Shortcut \"" + candidate + "\" is already used at this level",
	}
}

// ValidateNode checks a node and its descendants the way a save does:
// required fields, non-empty groups and shortcut uniqueness inside every
// group. Sibling checks for the node itself are the caller's job.
func ValidateNode(n *types.Node) error {
	if n == nil {
		return invalid("", "", "nil node")
	}
	switch n.Kind {
	case types.KindCommand:
		if strings.TrimSpace(n.Command) == "" {
			return invalid("command", n.ID, "Command is required")
		}
		if !n.ExecutionMode.Valid() {
			return invalid("executionMode", n.ID, "unknown execution mode %q", n.ExecutionMode)
		}
	case types.KindGroup:
		if len(n.Children) == 0 {
			return invalid("group", n.ID, MsgEmptyGroup)
		}
		if err := validateSiblings(n.Children); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := ValidateNode(c); err != nil {
				return err
			}
		}
	default:
		return invalid("kind", n.ID, "unknown node kind %q", n.Kind)
	}
	if strings.TrimSpace(n.Name) == "" {
		return invalid("name", n.ID, "Name is required")
	}
	if err := shortcut.Validate(n.Shortcut); err != nil {
		return invalid("shortcut", n.ID, "%s", err.Error())
	}
	return nil
}

// ValidateGroup checks only the group's own level: it has children and
// their shortcuts are unique. Descendant groups are not visited.
func ValidateGroup(g *types.Node) error {
	if g == nil || !g.IsGroup() {
		return invalid("kind", "", "not a group")
	}
	if len(g.Children) == 0 {
		return invalid("group", g.ID, MsgEmptyGroup)
	}
	return validateSiblings(g.Children)
}

// ValidateLevel is ValidateGroup plus the own fields of every direct
// child. A child group's children are left to that group's check.
func ValidateLevel(g *types.Node) error {
	if err := ValidateGroup(g); err != nil {
		return err
	}
	for _, c := range g.Children {
		p := types.NodePayload{
			Name:          c.Name,
			Command:       c.Command,
			ExecutionMode: c.ExecutionMode,
			Shortcut:      c.Shortcut,
		}
		if err := checkFields(p, c.Kind, c.ID); err != nil {
			return err
		}
	}
	return nil
}

func validateSiblings(nodes []*types.Node) error {
	conflicts := shortcut.Conflicts(nodes)
	for _, n := range nodes {
		if owner, ok := conflicts[n.ID]; ok {
			return conflictError(n.ID, n.Shortcut, owner)
		}
	}
	return nil
}

// ValidateNodes checks a root list: every node, root-level shortcut
// uniqueness and id uniqueness across the whole list.
func ValidateNodes(roots []*types.Node) error {
	if err := validateSiblings(roots); err != nil {
		return err
	}
	for _, n := range roots {
		if err := ValidateNode(n); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{})
	var dup string
	types.Walk(roots, func(n *types.Node, _ []*types.Node) bool {
		if _, ok := seen[n.ID]; ok {
			dup = n.ID
			return false
		}
		seen[n.ID] = struct{}{}
		return true
	})
	if dup != "" {
		return invalid("id", dup, "duplicate node id %s", dup)
	}
	return nil
}
