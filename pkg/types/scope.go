package types

import (
	"fmt"
	"strings"
)

// Scope names one writable configuration layer.
type Scope string

const (
	ScopeGlobal    Scope = "global"    // user settings
	ScopeWorkspace Scope = "workspace" // workspace settings
	ScopeLocal     Scope = "local"     // workspace-folder settings
)

// Scopes lists all layers from lowest to highest precedence.
var Scopes = []Scope{ScopeGlobal, ScopeWorkspace, ScopeLocal}

// Precedence returns the rank of the scope; higher wins on reads.
func (s Scope) Precedence() int {
	switch s {
	case ScopeGlobal:
		return 0
	case ScopeWorkspace:
		return 1
	case ScopeLocal:
		return 2
	}
	return -1
}

// Valid reports whether s names a known layer.
func (s Scope) Valid() bool {
	return s.Precedence() >= 0
}

// ParseScope parses a scope name (case-insensitive). There is no default:
// an empty or unknown name is an error so writes never land on a layer the
// caller did not name.
func ParseScope(name string) (Scope, error) {
	s := Scope(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		if name == "" {
			return "", fmt.Errorf("scope is required (global|workspace|local)")
		}
		return "", fmt.Errorf("unknown scope %q (global|workspace|local)", name)
	}
	return s, nil
}
