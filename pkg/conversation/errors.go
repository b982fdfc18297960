package conversation

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned for any operation on an unknown conversation id.
	ErrNotFound = errors.New("conversation not found")
	// ErrConflict is returned when a write-back lost a race or its target was
	// deleted mid-operation.
	ErrConflict = errors.New("conversation was modified concurrently")
	// ErrStoreUnavailable is returned when the underlying database cannot be
	// reached.
	ErrStoreUnavailable = errors.New("conversation store unavailable")
)

// ModelCallError wraps a provider or network failure during generation. The
// orchestrator discards all pending state when it returns one of these.
type ModelCallError struct {
	Err error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *ModelCallError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed request, typically a missing required
// field.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsModelCallError(err error) bool {
	var me *ModelCallError
	return errors.As(err, &me)
}
