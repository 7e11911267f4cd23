package engine

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrInvalidArgument indicates a caller supplied an unusable tenant, key,
	// context or batch. It is never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable indicates the rule store failed or timed out.
	ErrStoreUnavailable = errors.New("rule store unavailable")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// InvalidArgumentError describes a rejected input.
type InvalidArgumentError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Message)
}

// Is matches ErrInvalidArgument.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// StoreUnavailableError wraps a rule store failure.
type StoreUnavailableError struct {
	Operation string
	TenantID  string
	ConfigKey string
	Cause     error
}

// Error returns the error message.
func (e *StoreUnavailableError) Error() string {
	if e.ConfigKey != "" {
		return fmt.Sprintf("rule store %s failed for tenant %s key %s: %v", e.Operation, e.TenantID, e.ConfigKey, e.Cause)
	}
	return fmt.Sprintf("rule store %s failed for tenant %s: %v", e.Operation, e.TenantID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreUnavailableError) Unwrap() error {
	return e.Cause
}

// Is matches ErrStoreUnavailable.
func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func invalidArgument(field, format string, args ...any) error {
	return &InvalidArgumentError{Field: field, Message: fmt.Sprintf(format, args...)}
}
