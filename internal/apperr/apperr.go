package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrClassificationDegraded = errors.New("classification degraded")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrChannelFailure         = errors.New("channel failure")
	ErrNotFound               = errors.New("not found")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Unavailable marks a lower-layer failure. Context errors pass through unmarked so
// callers never retry a cancelled request.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Channel wraps a sink error for a single channel attempt.
func Channel(channel string, err error) error {
	return fmt.Errorf("%s: %w: %w", channel, ErrChannelFailure, err)
}
