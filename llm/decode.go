package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeError reports model output that is not valid JSON for the target shape.
type DecodeError struct {
	// Field is the JSON path of a type mismatch, when known.
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: %s", e.Field, e.Reason)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses raw into out. Syntax errors and type mismatches become *DecodeError.
func Decode(raw string, out interface{}) error {
	if raw == "" {
		return &DecodeError{Reason: "empty document", Err: ErrEmptyResponse}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		var typeErr *json.UnmarshalTypeError
		var syntaxErr *json.SyntaxError
		switch {
		case errors.As(err, &typeErr):
			return &DecodeError{
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
				Err:    err,
			}
		case errors.As(err, &syntaxErr):
			return &DecodeError{Reason: fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset), Err: err}
		default:
			return &DecodeError{Reason: err.Error(), Err: err}
		}
	}
	return nil
}
