package model

import (
	"errors"
	"fmt"
)

// MsgEmptyGroup is reported for groups without children.
const MsgEmptyGroup = "Group must have at least one command"

// ValidationError reports a rejected field. The tree is left unchanged.
type ValidationError struct {
	Field   string
	Message string
	NodeID  string
	OwnerID string // holder of a conflicting shortcut
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports an unknown node id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node not found: %s", e.ID)
}

// CycleError reports a move that would make a node its own ancestor.
type CycleError struct {
	ID       string
	ParentID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot move %s into %s: target is the node itself or one of its descendants", e.ID, e.ParentID)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsCycle reports whether err is a CycleError.
func IsCycle(err error) bool {
	var c *CycleError
	return errors.As(err, &c)
}

func invalid(field, nodeID, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, NodeID: nodeID, Message: fmt.Sprintf(format, args...)}
}
