package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a moderation action references an unknown
// submission id.
var ErrNotFound = errors.New("submission not found")

// ValidationError reports a rejected intake request. It is surfaced to the
// caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
