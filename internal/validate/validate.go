// Package validate wraps go-playground/validator with JSON field naming and
// short, client-safe messages.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator.
type Validator struct {
	validator *validator.Validate
}

// New creates a validator that reports fields by their JSON names.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: validate}
}

// Struct validates s and returns *Errors when any rule fails.
func (v *Validator) Struct(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return newErrors(verrs)
	}
	return err
}

// Var validates a single value against tag.
func (v *Validator) Var(field interface{}, tag string) error {
	return v.validator.Var(field, tag)
}

// Errors maps JSON field names to messages.
type Errors struct {
	Fields map[string]string `json:"errors"`
}

func (e *Errors) Error() string {
	_, msg := e.First()
	if len(e.Fields) <= 1 {
		return msg
	}
	return fmt.Sprintf("%s (and %d more)", msg, len(e.Fields)-1)
}

// First returns the alphabetically first failing field and its message, so
// callers that report a single field do so deterministically.
func (e *Errors) First() (string, string) {
	if len(e.Fields) == 0 {
		return "", ""
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], e.Fields[names[0]]
}

func newErrors(errs validator.ValidationErrors) *Errors {
	fields := make(map[string]string, len(errs))

	for _, err := range errs {
		field := err.Field()

		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s characters long", field, err.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
		case "uuid", "uuid4":
			fields[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return &Errors{Fields: fields}
}
