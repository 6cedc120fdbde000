// Package storeerr defines the error categories the HTTP boundary needs to
// tell apart: callers must not retry validation or conflict rejections, may
// retry infrastructure failures, and must treat gateway failures as final.
package storeerr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a state clash (insufficient stock, amount mismatch,
	// incompatible order status). The caller must refresh and decide again.
	ErrConflict = errors.New("conflict")
	// ErrExternal marks a failed or timed-out call to the payment gateway or
	// the carrier-tracking API.
	ErrExternal = errors.New("external service error")
	// ErrPersistence marks a datastore failure.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Externalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExternal, fmt.Sprintf(format, args...))
}

func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
