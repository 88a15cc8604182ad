// Package apperr defines the error taxonomy the mutation services return
// and the HTTP layer translates: not found, forbidden, validation with
// field detail, and a generic storage failure.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both a genuinely missing resource and a project
	// the caller may not see; the two are deliberately indistinguishable
	// at the project level.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is the explicit issue-level denial: the caller is
	// authenticated and the project visible, but the creator/assignee/
	// admin relation is missing.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries field-level detail for constraint violations.
// Validation runs before any mutation is attempted.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func Validation(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

func ValidationField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// StorageError wraps an unexpected database failure. The boundary maps it
// to the same generic 400 as a client fault; the cause stays available for
// logs.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "storage failure: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func Storage(err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Err: err}
}

func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
