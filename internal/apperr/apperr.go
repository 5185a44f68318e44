// Package apperr defines the error kinds returned by the reservation
// services.  Every error that leaves the service layer is an *Error so that
// callers can branch on Kind without looking at storage internals.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/hangout-reservations/internal/repository"
)

// Kind classifies a failure.
type Kind string

const (
	NotFound                Kind = "not_found"
	CapacityExceeded        Kind = "capacity_exceeded"
	IllegalOperation        Kind = "illegal_operation"
	ValidationFailed        Kind = "validation_failed"
	ConcurrencyExhausted    Kind = "concurrency_exhausted"
	TransientInfrastructure Kind = "transient_infrastructure"
)

// Error is the canonical service error.  Details carries the identifiers and
// observed counters a caller needs to render an actionable message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// With returns a copy of e with an extra detail attached.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message)}
}

func NotFoundf(op, format string, args ...any) *Error {
	return New(NotFound, op, fmt.Sprintf(format, args...))
}

func Capacity(op, offerID string, capacity, claimed int) *Error {
	return New(CapacityExceeded, op, "offer has no remaining spots").
		With("offerId", offerID).With("capacity", capacity).With("claimedSpots", claimed)
}

func Illegal(op, format string, args ...any) *Error {
	return New(IllegalOperation, op, fmt.Sprintf(format, args...))
}

func Invalid(op, format string, args ...any) *Error {
	return New(ValidationFailed, op, fmt.Sprintf(format, args...))
}

func Exhausted(op string, attempts int, cause error) *Error {
	e := New(ConcurrencyExhausted, op, fmt.Sprintf("gave up after %d conflicting attempts", attempts)).With("attempts", attempts)
	e.Cause = cause
	return e
}

func Transient(op string, cause error) *Error {
	e := New(TransientInfrastructure, op, "storage unavailable")
	e.Cause = cause
	return e
}

// KindOf returns the kind carried by err, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// FromStore translates a repository error into a service error.  Errors that
// already carry a kind pass through.  Anything unrecognised is treated as
// transient so a raw driver error never escapes.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: NotFound, Op: op, Message: "not found", Cause: err}
	case errors.Is(err, repository.ErrTooManyItems):
		return &Error{Kind: ValidationFailed, Op: op, Message: "too many records in one write", Cause: err}
	case errors.Is(err, repository.ErrConditionFailed), errors.Is(err, repository.ErrConflict):
		return &Error{Kind: ConcurrencyExhausted, Op: op, Message: "concurrent modification", Cause: err}
	default:
		return Transient(op, err)
	}
}
