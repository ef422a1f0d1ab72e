package rbac

import (
	"errors"
	"fmt"
)

// Sentinel errors for the common failure classes. Typed errors below
// wrap these so callers can match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrImmutableField    = errors.New("immutable field")
	ErrProtectedResource = errors.New("protected resource")
	ErrNotFound          = errors.New("not found")
	ErrTransientFetch    = errors.New("transient fetch failure")
)

// ValidationError reports a malformed identifier or duplicate name
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ImmutableFieldError reports an attempt to change a protected field
type ImmutableFieldError struct {
	Entity string
	Field  string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("%s field %s cannot be modified", e.Entity, e.Field)
}

func (e *ImmutableFieldError) Unwrap() error { return ErrImmutableField }

// ProtectedResourceError reports an attempt to delete a system entity
type ProtectedResourceError struct {
	Entity string
	Name   string
}

func (e *ProtectedResourceError) Error() string {
	return fmt.Sprintf("%s %q is protected and cannot be deleted", e.Entity, e.Name)
}

func (e *ProtectedResourceError) Unwrap() error { return ErrProtectedResource }

// NotFoundError reports a reference to a nonexistent entity
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransientFetchError wraps a backend failure while resolving
// permissions or menus. Evaluation falls back to an empty set.
type TransientFetchError struct {
	Op  string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return ErrTransientFetch }

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
