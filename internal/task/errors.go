package task

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Errors are ordinary values carried through
// control flow; nothing is signalled by panics across the pool boundary.
type Kind uint8

const (
	// KindValidation marks caller-supplied input as invalid. Surfaced
	// synchronously at submit time; never retried.
	KindValidation Kind = iota + 1
	// KindTimeout marks a processor that exceeded its deadline.
	KindTimeout
	// KindHandler marks a processor that failed or returned an invalid
	// result.
	KindHandler
	// KindStoreTransient marks an I/O failure contacting the store. The
	// worker backs off and resumes; the task itself is covered by the
	// lease reaper.
	KindStoreTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindHandler:
		return "handler"
	case KindStoreTransient:
		return "store_transient"
	default:
		return "unknown"
	}
}

// ErrNotFound is returned by status lookups for unknown or expired
// task IDs.
var ErrNotFound = errors.New("task not found")

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidation builds a KindValidation error.
func NewValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NewTimeout builds a KindTimeout error.
func NewTimeout(format string, args ...any) *Error {
	return &Error{Kind: KindTimeout, Msg: fmt.Sprintf(format, args...)}
}

// NewHandler wraps a processor failure.
func NewHandler(err error) *Error {
	return &Error{Kind: KindHandler, Err: err}
}

// NewStoreTransient wraps a store I/O failure.
func NewStoreTransient(err error) *Error {
	return &Error{Kind: KindStoreTransient, Err: err}
}

// IsKind reports whether err (or anything it wraps) carries the kind.
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}
