// Package types provides the core data types for quickcmd.
package types

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind distinguishes leaf commands from groups.
type Kind string

const (
	KindCommand Kind = "command"
	KindGroup   Kind = "group"
)

// Valid reports whether k is a known node kind.
func (k Kind) Valid() bool {
	return k == KindCommand || k == KindGroup
}

// ExecutionMode selects how a command is dispatched.
type ExecutionMode string

const (
	ModeTerminal   ExecutionMode = "terminal"
	ModeEditorAPI  ExecutionMode = "editorApi"
	ModeInsertOnly ExecutionMode = "insertOnly"
)

// Valid reports whether m is a known execution mode. The empty mode is
// valid and means terminal.
func (m ExecutionMode) Valid() bool {
	switch m {
	case "", ModeTerminal, ModeEditorAPI, ModeInsertOnly:
		return true
	}
	return false
}

// Node is a command or a group in the quick command tree.
// Compatible with the persisted settings layout: unknown keys are kept in
// Extra and written back unchanged.
type Node struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Name string `json:"name"` // "$(icon) label"

	// Command fields
	Command       string        `json:"command,omitempty"`
	ExecutionMode ExecutionMode `json:"executionMode,omitempty"`
	TerminalName  string        `json:"terminalName,omitempty"`

	Shortcut string `json:"shortcut,omitempty"` // single character
	Color    string `json:"color,omitempty"`    // CSS color

	// Group fields
	ExecuteSimultaneously bool    `json:"executeSimultaneously,omitempty"`
	Children              []*Node `json:"group,omitempty"`

	// Extra holds keys this version does not know about.
	Extra map[string]json.RawMessage `json:"-"`
}

// nodeAlias drops the custom marshalers to avoid recursion.
type nodeAlias Node

var knownNodeKeys = map[string]struct{}{
	"id":                    {},
	"kind":                  {},
	"name":                  {},
	"command":               {},
	"executionMode":         {},
	"terminalName":          {},
	"shortcut":              {},
	"color":                 {},
	"executeSimultaneously": {},
	"group":                 {},
}

// UnmarshalJSON decodes a node and keeps unknown keys in Extra.
// Entries without a kind are groups when they carry a "group" key.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var decoded nodeAlias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*n = Node(decoded)

	if n.Kind == "" {
		if _, ok := raw["group"]; ok {
			n.Kind = KindGroup
		} else {
			n.Kind = KindCommand
		}
	}

	for k, v := range raw {
		if _, known := knownNodeKeys[k]; known {
			continue
		}
		if n.Extra == nil {
			n.Extra = make(map[string]json.RawMessage)
		}
		n.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes a node, merging Extra back in. Known fields win over
// Extra keys of the same name.
func (n Node) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(nodeAlias(n))
	if err != nil || len(n.Extra) == 0 {
		return data, err
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, v := range n.Extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// IsGroup reports whether the node is a group.
func (n *Node) IsGroup() bool {
	return n.Kind == KindGroup
}

// Mode returns the execution mode, defaulting to terminal.
func (n *Node) Mode() ExecutionMode {
	if n.ExecutionMode == "" {
		return ModeTerminal
	}
	return n.ExecutionMode
}

var iconPattern = regexp.MustCompile(`^\$\(([\w-]+)\)\s*`)

// Icon returns the icon token embedded at the start of Name, if any.
func (n *Node) Icon() string {
	if m := iconPattern.FindStringSubmatch(n.Name); m != nil {
		return m[1]
	}
	return ""
}

// Label returns Name without its icon token.
func (n *Node) Label() string {
	return strings.TrimSpace(iconPattern.ReplaceAllString(n.Name, ""))
}

// Clone returns a deep copy of the node and its descendants.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	if n.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(n.Extra))
		for k, v := range n.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// CloneNodes deep-copies a node list.
func CloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Walk visits nodes depth-first in declared order. The path holds the
// ancestors of each visited node. Returning false stops the walk.
func Walk(nodes []*Node, fn func(n *Node, path []*Node) bool) bool {
	return walk(nodes, nil, fn)
}

func walk(nodes []*Node, path []*Node, fn func(*Node, []*Node) bool) bool {
	for _, n := range nodes {
		if !fn(n, path) {
			return false
		}
		if len(n.Children) > 0 {
			if !walk(n.Children, append(path[:len(path):len(path)], n), fn) {
				return false
			}
		}
	}
	return true
}
