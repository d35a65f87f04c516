// Package apperrors defines the error taxonomy shared by the appointment
// saga: validation failures, missing aggregates, illegal state transitions
// and transient store/channel I/O failures. The domain and store layers
// return these unmodified; the HTTP and queue boundaries translate them.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input. Client-caused, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an absent appointment aggregate.
type NotFoundError struct {
	AppointmentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointment %s not found", e.AppointmentID)
}

// InvalidStateError reports an illegal status transition, e.g. completing an
// already-completed appointment. It signals either a duplicate delivery or a
// logic bug and must be logged distinctly from NotFoundError.
type InvalidStateError struct {
	AppointmentID string
	Status        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("appointment %s is not pending (status=%s)", e.AppointmentID, e.Status)
}

// StoreError wraps a transient I/O failure against a store or channel. The
// invoking message-delivery runtime is expected to retry these.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

func IsStore(err error) bool {
	var e *StoreError
	return errors.As(err, &e)
}
