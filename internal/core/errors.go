package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Layers wrap these with %w and the
// HTTP layer maps them to status codes via errors.Is.
var (
	ErrValidation = errors.New("invalid input data")
	ErrAuth       = errors.New("invalid username or password")
	ErrConflict   = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
)

// Validationf returns a validation error with detail, e.g.
// Validationf("missing field %q", "amount").
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
