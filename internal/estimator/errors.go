package estimator

import (
	"errors"
	"fmt"
)

// Hard errors abort a fit. Soft errors (ErrNumerical, ErrNotConverged) are
// reported on the Result instead of being returned.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrDegenerateData = errors.New("degenerate data")
	ErrNumerical      = errors.New("numerical error")
	ErrNotConverged   = errors.New("nonlinear refinement did not converge")
)

// InputError describes which part of the input was rejected.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalidf(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
