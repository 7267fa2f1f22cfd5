// Package apperr defines the error kinds surfaced by the social graph core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindInvalidState     Kind = "invalid_state"
	KindPermissionDenied Kind = "permission_denied"
	KindInvalid          Kind = "invalid_argument"
	KindUnauthenticated  Kind = "unauthenticated"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
)

// Error carries a stable caller-facing message; Err is kept for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrInvalid          = &Error{Kind: KindInvalid}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated}
	ErrUnavailable      = &Error{Kind: KindUnavailable}
)

func NotFound(msg string) error         { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) error         { return &Error{Kind: KindConflict, Message: msg} }
func InvalidState(msg string) error     { return &Error{Kind: KindInvalidState, Message: msg} }
func PermissionDenied(msg string) error { return &Error{Kind: KindPermissionDenied, Message: msg} }
func Invalid(msg string) error          { return &Error{Kind: KindInvalid, Message: msg} }
func Unauthenticated(msg string) error  { return &Error{Kind: KindUnauthenticated, Message: msg} }

// Unavailable wraps a transient store failure that outlived its retries.
func Unavailable(err error) error {
	return &Error{Kind: KindUnavailable, Message: "service temporarily unavailable", Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
