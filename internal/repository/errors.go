// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// service and handlers to distinguish between different failure
// scenarios. ErrConditionFailed signals that a guarded write lost a
// compare-and-swap race or found unexpected state, while ErrUnavailable
// marks any failure of the underlying database (connection loss, timeout)
// that callers may retry at their own discretion.
package repository

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as a duplicate user id or a marker bump that
// kept losing its race.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned by point reads when no item exists for the key.
var ErrNotFound = errors.New("item not found")

// ErrConditionFailed is returned when at least one condition attached to a
// write did not hold. The whole transaction was rolled back.
var ErrConditionFailed = errors.New("condition failed")

// ErrTooManyItems is returned when a transaction exceeds MaxTransactItems.
var ErrTooManyItems = errors.New("too many items in transaction")

// ErrUnavailable wraps every infrastructure failure of the store.
var ErrUnavailable = errors.New("store unavailable")

// ConditionFailedError reports which operation of a transaction failed its
// condition. Index is the position of the operation in the submitted slice.
type ConditionFailedError struct {
	Index int
	PK    string
	SK    string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition failed on op %d (%s/%s)", e.Index, e.PK, e.SK)
}

// Is lets errors.Is(err, ErrConditionFailed) match.
func (e *ConditionFailedError) Is(target error) bool { return target == ErrConditionFailed }

// UnavailableError carries the failing store operation and driver error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUnavailable) match.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}
