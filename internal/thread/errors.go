// ABOUTME: Error types for the threading engine
// ABOUTME: ValidationError for malformed requests, ErrThreadClosed for terminal status

package thread

import (
	"errors"
	"fmt"
)

// ErrThreadClosed is returned when an operation attempts to change the status
// of a closed thread. Closed is terminal; archived threads may be reopened.
var ErrThreadClosed = errors.New("thread is closed")

// ValidationError indicates a malformed request, such as a missing required
// field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// requiredField returns a ValidationError for a missing required field.
func requiredField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}
