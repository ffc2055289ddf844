package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cppla/learnsprint/llm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so errors point at the generated document, not Go fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeGenerated parses model output into out and validates its struct tags.
func decodeGenerated(stage, raw string, out interface{}) error {
	if err := llm.Decode(raw, out); err != nil {
		var de *llm.DecodeError
		if errors.As(err, &de) {
			return &SchemaError{Stage: stage, Field: de.Field, Reason: de.Reason, Err: err}
		}
		return &SchemaError{Stage: stage, Reason: err.Error(), Err: err}
	}
	return checkShape(stage, out)
}

// checkShape runs validator tags on v and reports the first violation as a SchemaError.
func checkShape(stage string, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &SchemaError{Stage: stage, Field: fieldPath(fe), Reason: describeTag(fe), Err: err}
	}
	return &SchemaError{Stage: stage, Reason: err.Error(), Err: err}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:] // drop the root type name
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "missing"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("needs at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
