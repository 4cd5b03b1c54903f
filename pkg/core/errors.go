package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure classes of the pipeline. Typed errors
// below unwrap to these so callers can match with errors.Is.
var (
	ErrMissingColumn    = errors.New("missing column")
	ErrSchema           = errors.New("schema error")
	ErrInvalidInput     = errors.New("invalid input")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrValidation       = errors.New("validation failed")
)

// MissingColumnError is returned when a required column is absent.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// SchemaError is returned when the target column holds a label outside the
// expected value set.
type SchemaError struct {
	Column string
	Row    int
	Value  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q row %d: unrecognized label %q", e.Column, e.Row, e.Value)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// InvalidInputError is returned when a request field cannot be converted
// even with coercion.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input for field %q: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// ModelUnavailableError is returned by every prediction when the model
// artifact failed to load at startup.
type ModelUnavailableError struct {
	Err error
}

func (e *ModelUnavailableError) Error() string {
	if e.Err == nil {
		return "model unavailable"
	}
	return "model unavailable: " + e.Err.Error()
}

func (e *ModelUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrModelUnavailable}
	}
	return []error{ErrModelUnavailable, e.Err}
}

// ValidationFailure lists the data-quality rules a batch violated.
// It is informational unless the caller chooses to enforce it.
type ValidationFailure struct {
	Violations []string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed: %d issues (%s)", len(e.Violations), strings.Join(e.Violations, "; "))
}

func (e *ValidationFailure) Unwrap() error { return ErrValidation }
