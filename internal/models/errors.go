package models

import (
	"errors"
	"fmt"
)

// Shared error taxonomy. Repositories, the script store and the lifecycle
// coordinator return these (wrapped); the API layer maps them to HTTP
// status codes.
var (
	// ErrNotFound means a referenced id is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict means an invalid state transition or a duplicate active
	// generation task.
	ErrConflict = errors.New("conflict")

	// ErrDispatchFailed means the studio service was unreachable or
	// rejected a submit; no task was recorded.
	ErrDispatchFailed = errors.New("generation dispatch failed")

	// ErrStaleScript means a generation result targeted a script version
	// that a user edit has since superseded.
	ErrStaleScript = errors.New("stale script version")

	// ErrRepositoryUnavailable means the persistence layer is unreachable;
	// safe to retry.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// Validation builds a missing-field error.
func Validation(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// Invalid builds a malformed-field error.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
