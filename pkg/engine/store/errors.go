package store

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrNotFound indicates a rule id does not exist for the tenant.
	ErrNotFound = errors.New("rule not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")

	// ErrInvalidRule indicates a rule document failed structural validation.
	ErrInvalidRule = errors.New("invalid rule")
)

// LoadError describes a rule file that could not be read or parsed.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// RuleError reports the structural problems of one rule document.
type RuleError struct {
	// Source locates the document, e.g. "rules/pos.yaml#3".
	Source   string
	RuleID   string
	Problems []string
}

// Error returns the error message.
func (e *RuleError) Error() string {
	id := e.RuleID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("rule %s at %s: %s", id, e.Source, strings.Join(e.Problems, "; "))
}

// Is matches ErrInvalidRule.
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}
