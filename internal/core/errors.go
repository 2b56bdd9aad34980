// Package core defines the fundamental types and errors for lifectx.
package core

import (
	"errors"
	"fmt"
)

// Core errors that can occur across the system
var (
	// ErrValidation marks a missing or empty required field on create, or a
	// cross-field invariant violation on update.
	ErrValidation = errors.New("validation error")

	// ErrNotFound means an operation referenced an id that is not stored.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable means the persistence collaborator failed to
	// read or write a collection.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FieldError describes which field failed validation and why.
// It matches ErrValidation with errors.Is.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) succeed.
func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the family and id that were looked up.
func NotFound(family, id string) error {
	return fmt.Errorf("%s %q: %w", family, id, ErrNotFound)
}
