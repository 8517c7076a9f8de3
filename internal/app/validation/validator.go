// Package validation checks command and query structs against their
// `validate` tags and reports failures per JSON field.
package validation

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"homestay/internal/app/apperr"
	"homestay/internal/domain/shared/daterange"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(daterange.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		_, err := time.Parse("15:04", raw)
		return err == nil
	})
	return &Validator{v: v}
}

// Validate returns *apperr.ValidationError for tag violations. Values that
// are not structs pass through.
func (val *Validator) Validate(_ context.Context, message any) error {
	rv := reflect.ValueOf(message)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := val.v.Struct(message)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &apperr.ValidationError{}
	for _, fe := range fieldErrs {
		out.Add(fieldPath(fe), describe(fe))
	}
	return out
}

// fieldPath drops the struct and embedding prefixes so that clients see the
// bare JSON field name.
func fieldPath(fe validator.FieldError) string {
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "date":
		return "must be a date formatted as YYYY-MM-DD"
	case "hhmm":
		return "must be a time formatted as HH:MM"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "alpha":
		return "must contain letters only"
	}
	return "is invalid"
}
