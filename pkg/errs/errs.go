// Package errs defines the error kinds shared across the evoagent core.
//
// Every component classifies failures into one of a small set of kinds
// rather than inventing ad-hoc error types, so that callers (the
// Orchestrator's retry policy, the LaneQueue's retry edge, the Gateway's
// HTTP status mapping) can make uniform decisions.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and presentation purposes.
type Kind string

const (
	Validation         Kind = "validation_error"
	NotFound           Kind = "not_found"
	PreconditionFailed Kind = "precondition_failed"
	Conflict           Kind = "conflict"
	Timeout            Kind = "timeout"
	RateLimited        Kind = "rate_limited"
	Unauthorized       Kind = "unauthorized"
	Transient          Kind = "transient"
	Fatal              Kind = "fatal"
	Internal           Kind = "internal"
)

// Retryable reports whether errors of this kind are safe to retry.
func (k Kind) Retryable() bool {
	switch k {
	case Timeout, RateLimited, Transient:
		return true
	case Internal:
		// Treated as retryable once by callers that track attempt counts;
		// the kind itself does not forbid a retry.
		return true
	default:
		return false
	}
}

// Error is the concrete error type carried through the core.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.NotFound) style checks against the kind
// by comparing against a sentinel constructed with that kind and no message.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewValidation(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

func NewNotFound(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func NewPreconditionFailed(format string, args ...any) *Error {
	return New(PreconditionFailed, fmt.Sprintf(format, args...))
}

func NewConflict(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func NewTimeout(format string, args ...any) *Error {
	return New(Timeout, fmt.Sprintf(format, args...))
}

func NewRateLimited(format string, args ...any) *Error {
	return New(RateLimited, fmt.Sprintf(format, args...))
}

func NewUnauthorized(format string, args ...any) *Error {
	return New(Unauthorized, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind of err, defaulting to Internal for errors that
// were never classified (i.e. not produced by this package).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Retryable reports whether err, classified via KindOf, should be retried.
func Retryable(err error) bool {
	return KindOf(err).Retryable()
}
