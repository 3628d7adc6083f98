// Package errors holds the error types of the map labeling packages.
//
// Classification never fails: a label without renderings or a verse without
// text is a status, not an error. Errors come from loading catalogs and
// verse text, from the term store, and from commands naming a label or term
// the session does not know.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every lookup miss: an unknown merge key,
	// term ID, denial or place name.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is wrapped by validation and parse failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists marks a duplicate label or place name in a catalog.
	ErrAlreadyExists = errors.New("already exists")
)

// NotFoundError is a lookup miss. Resource names what was looked up
// ("label", "term", "denial") and ID the key that missed.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Unwrap matches ErrNotFound and the cause, if any.
func (e *NotFoundError) Unwrap() []error {
	return withCause(ErrNotFound, e.Err)
}

// ValidationError rejects a command argument, flag or catalog attribute.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap matches ErrInvalidInput and the cause, if any.
func (e *ValidationError) Unwrap() []error {
	return withCause(ErrInvalidInput, e.Err)
}

// IOError is a failed file or database operation on Path.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError is a malformed document: a catalog, a template, a reference or
// a verse file. Path is empty for documents that were not read from a file.
type ParseError struct {
	Document string
	Path     string
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing %s: %s", e.Document, e.Message)
	}
	return fmt.Sprintf("parsing %s %s: %s", e.Document, e.Path, e.Message)
}

// Unwrap matches ErrInvalidInput and the cause, if any.
func (e *ParseError) Unwrap() []error {
	return withCause(ErrInvalidInput, e.Err)
}

func withCause(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// NewNotFound reports that resource id does not exist.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidation rejects field with message.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewIO wraps err from operation on path.
func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

// NewParse reports a malformed document.
func NewParse(document, path, message string) *ParseError {
	return &ParseError{Document: document, Path: path, Message: message}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Code classifies err for the feed and its REST endpoints: NOT_FOUND,
// INVALID_INPUT, or INTERNAL_ERROR for everything else.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return "INTERNAL_ERROR"
	}
}
