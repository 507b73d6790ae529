package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document is not found
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when the final document write observes a
	// version other than the one read inside the same transaction
	ErrConflict = errors.New("document version conflict")

	// ErrClosed is returned when operating on a closed store
	ErrClosed = errors.New("store is closed")
)

// ConflictError carries the versions involved in a write conflict.
type ConflictError struct {
	DocumentID      string
	ExpectedVersion int64
	FoundVersion    int64
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict for document %s: expected=%d, found=%d",
		e.DocumentID, e.ExpectedVersion, e.FoundVersion)
}

// Is reports whether the error matches ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Unwrap returns the underlying error
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a new conflict error
func NewConflictError(docID string, expected, found int64) *ConflictError {
	return &ConflictError{
		DocumentID:      docID,
		ExpectedVersion: expected,
		FoundVersion:    found,
	}
}
