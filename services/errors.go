package services

import (
	"errors"
	"fmt"
)

// Error kinds. Controllers map them to HTTP status codes; the sweep logs and moves on.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrGeneration  = errors.New("generation failed")
	ErrPersistence = errors.New("persistence failed")
)

// SchemaError is model output that did not match the expected shape.
// It is both a generation failure and a validation failure.
type SchemaError struct {
	Stage  string
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid %s: %s", e.Stage, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *SchemaError) Unwrap() []error {
	errs := []error{ErrGeneration, ErrValidation}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func generationErr(op string, err error) error {
	var se *SchemaError
	if errors.As(err, &se) || errors.Is(err, ErrGeneration) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrGeneration, err)
}
