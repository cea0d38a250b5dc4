package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references an unknown
	// monitor id.
	ErrNotFound = errors.New("monitor config not found")

	// ErrDuplicateConfig is returned when the same (address, email)
	// pair is already registered.
	ErrDuplicateConfig = errors.New("monitor config already exists")
)

// ValidationError reports a malformed field on a create request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
