// ABOUTME: Struct-tag validation for entities
// ABOUTME: Converts validator failures into ValidationError keyed by JSON field name
package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateMap checks a map's required fields.
func ValidateMap(m *Map) error {
	return toValidationError(validate.Struct(m))
}

// ValidateStakeholder checks required fields and score ranges.
// Interactions are validated individually.
func ValidateStakeholder(s *Stakeholder) error {
	if err := toValidationError(validate.Struct(s)); err != nil {
		return err
	}
	for i := range s.Interactions {
		if err := ValidateInteraction(&s.Interactions[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateInteraction checks that an interaction carries text.
func ValidateInteraction(in *Interaction) error {
	return toValidationError(validate.Struct(in))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "entity", Reason: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "max":
		return fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
