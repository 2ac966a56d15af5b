// Package shortcut checks one-key shortcut uniqueness within a sibling scope.
//
// Uniqueness is local: root-level nodes are compared against each other and
// a group's direct children are compared among themselves. Nothing here
// walks into descendants.
package shortcut

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/telnet2/quickcmd/pkg/types"
)

// Result is the outcome of a uniqueness check.
type Result struct {
	// OwnerID is the sibling that already holds the shortcut, or "".
	OwnerID string
}

// Ok reports whether the candidate is free.
func (r Result) Ok() bool {
	return r.OwnerID == ""
}

// Normalize lower-cases and trims a shortcut.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate rejects shortcuts longer than one character.
func Validate(candidate string) error {
	s := Normalize(candidate)
	if utf8.RuneCountInString(s) > 1 {
		return fmt.Errorf("shortcut must be a single character, got %q", candidate)
	}
	return nil
}

// Check compares candidate against every sibling except selfID. An empty
// candidate never conflicts.
func Check(siblings []*types.Node, selfID, candidate string) Result {
	c := Normalize(candidate)
	if c == "" {
		return Result{}
	}
	for _, s := range siblings {
		if s == nil || s.ID == selfID {
			continue
		}
		if Normalize(s.Shortcut) == c {
			return Result{OwnerID: s.ID}
		}
	}
	return Result{}
}

// Conflicts returns every pair of siblings sharing a shortcut, keyed by the
// later node's id and valued with the earlier owner's id.
func Conflicts(siblings []*types.Node) map[string]string {
	seen := make(map[string]string)
	var out map[string]string
	for _, s := range siblings {
		c := Normalize(s.Shortcut)
		if c == "" {
			continue
		}
		if owner, ok := seen[c]; ok {
			if out == nil {
				out = make(map[string]string)
			}
			out[s.ID] = owner
			continue
		}
		seen[c] = s.ID
	}
	return out
}
