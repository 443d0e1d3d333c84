package shared

import (
	"context"
	"errors"
)

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAction indicates an unrecognised settlement action.
	ErrInvalidAction = errors.New("invalid action")
	// ErrConflict indicates a concurrent mutation or a duplicate record.
	ErrConflict = errors.New("conflict")
	// ErrStorage wraps failures of the persistent store.
	ErrStorage = errors.New("storage failure")
	// ErrTimeout indicates a storage call exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrForbidden indicates the acting role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// ErrorKind is the stable classification surfaced to callers.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindInvalidAction ErrorKind = "invalid_action"
	KindConflict      ErrorKind = "conflict"
	KindTimeout       ErrorKind = "timeout"
	KindForbidden     ErrorKind = "forbidden"
	KindStorage       ErrorKind = "storage"
)

// KindOf classifies err. Unknown errors are reported as storage failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAction):
		return KindInvalidAction
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindStorage
	}
}

// UserSafeMessage returns a message that can be shown to end users.
func UserSafeMessage(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindValidation, KindInvalidAction:
		return err.Error()
	case KindNotFound:
		return "Resource not found."
	case KindConflict:
		return "The record was modified concurrently or already exists. Please retry."
	case KindForbidden:
		return "You are not allowed to perform this operation."
	case KindTimeout:
		return "The operation timed out. Please retry."
	default:
		return "An error occurred. Please retry."
	}
}
