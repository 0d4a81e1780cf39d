// Package kberrors defines the error taxonomy shared by every layer of the
// knowledge-base engine. Callers dispatch on error kind with errors.As, never
// by inspecting message text.
package kberrors

import "fmt"

// InvalidRequest marks a validation failure: a bad type name, a malformed
// id, an unknown status name, or any other caller-supplied value rejected
// before it reaches storage.
type InvalidRequest struct {
	Reason string
}

func (e *InvalidRequest) Error() string { return "invalid request: " + e.Reason }

// NewInvalidRequest builds an InvalidRequest with a formatted reason.
func NewInvalidRequest(format string, args ...any) error {
	return &InvalidRequest{Reason: fmt.Sprintf(format, args...)}
}

// NotFound marks a missing item, status, tag, or type.
type NotFound struct {
	Kind string // "item", "status", "tag", "type"
	Key  string
}

func (e *NotFound) Error() string { return e.Kind + " not found: " + e.Key }

// NewNotFound builds a NotFound error.
func NewNotFound(kind, key string) error {
	return &NotFound{Kind: kind, Key: key}
}

// Conflict marks a duplicate daily, a sequence collision, a duplicate tag
// creation race, or a type-change attempted across incompatible base kinds.
type Conflict struct {
	Reason string
}

func (e *Conflict) Error() string { return "conflict: " + e.Reason }

// NewConflict builds a Conflict with a formatted reason.
func NewConflict(format string, args ...any) error {
	return &Conflict{Reason: fmt.Sprintf(format, args...)}
}

// InvalidQuery marks an FTS query the parser could not accept.
type InvalidQuery struct {
	Query  string
	Reason string
}

func (e *InvalidQuery) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Query, e.Reason)
}

// NewInvalidQuery builds an InvalidQuery error.
func NewInvalidQuery(query, reason string) error {
	return &InvalidQuery{Query: query, Reason: reason}
}

// IoError wraps a filesystem failure with the path that triggered it.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string { return fmt.Sprintf("io error on %s: %v", e.Path, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// NewIoError wraps err with the offending path.
func NewIoError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &IoError{Path: path, Err: err}
}

// IndexError marks a relational-index write failure after the file of
// record was already written successfully. Callers should retry or
// trigger a rebuild; the file itself is never at risk.
type IndexError struct {
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index error: %v", e.Err) }
func (e *IndexError) Unwrap() error { return e.Err }

// NewIndexError wraps err as an IndexError.
func NewIndexError(err error) error {
	if err == nil {
		return nil
	}
	return &IndexError{Err: err}
}

// Internal is the catch-all for invariant violations. Always log the
// wrapped error with context before returning it.
type Internal struct {
	Err error
}

func (e *Internal) Error() string { return fmt.Sprintf("internal error: %v", e.Err) }
func (e *Internal) Unwrap() error { return e.Err }

// NewInternal wraps err as an Internal error.
func NewInternal(err error) error {
	if err == nil {
		return nil
	}
	return &Internal{Err: err}
}
