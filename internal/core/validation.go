package core

// validation.go checks query parameters before they reach the query engine.
//
// Static bounds live in struct tags on FilterSpec and are enforced with
// go-playground/validator. Field names in errors use the JSON tag so they
// match the HTTP query parameters.

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates request values and converts failures into
// *ValidationError.
type Validator struct {
	validate    *validator.Validate
	maxPageSize int
}

// NewValidator creates a validator. maxPageSize tightens the page_size bound
// below the one declared on FilterSpec; zero keeps the declared bound.
func NewValidator(maxPageSize int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v, maxPageSize: maxPageSize}
}

// ValidateFilter checks spec and returns nil or a *ValidationError listing
// every invalid field.
func (v *Validator) ValidateFilter(spec FilterSpec) error {
	var fields []FieldError

	if err := v.validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate filter: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: formatFieldError(fe)})
		}
	}

	if v.maxPageSize > 0 && spec.PageSize > v.maxPageSize && !hasField(fields, "page_size") {
		fields = append(fields, FieldError{
			Field:   "page_size",
			Message: fmt.Sprintf("must be at most %d", v.maxPageSize),
		})
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func hasField(fields []FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "failed " + fe.Tag() + " check"
}
