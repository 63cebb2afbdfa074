package points

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced complaint does not exist.
	ErrNotFound = errors.New("complaint not found")

	// ErrPermission means the actor lacks scope over the target complaint
	// or department.
	ErrPermission = errors.New("actor lacks permission for this complaint")
)

// ValidationError marks a missing or malformed request field. Detected
// before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
