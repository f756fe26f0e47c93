package core

import "errors"

// Sentinel error kinds. Callers wrap them with fmt.Errorf("%w: ...") and
// classify with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrAmountOverflow   = errors.New("amount overflows balance")
)

// invalid wraps a validation detail so that errors.Is(err, ErrValidation) holds.
func invalid(detail error) error {
	return &ValidationError{Err: detail}
}

// ValidationError carries the specific reason an input was rejected.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// Invalid builds a validation error from a message.
func Invalid(msg string) error {
	return invalid(errors.New(msg))
}
