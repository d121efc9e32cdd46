// Package validate checks service input structs with struct tags.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

var (
	once     sync.Once
	instance *validator.Validate
)

var decimalChecks = map[string]func(decimal.Decimal) bool{
	"dgt0":  decimal.Decimal.IsPositive,
	"dgte0": func(d decimal.Decimal) bool { return !d.IsNegative() },
	"dne0":  func(d decimal.Decimal) bool { return !d.IsZero() },
}

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		// Decimals reach validators as their exact string form and are
		// checked with the dgt0, dgte0 and dne0 tags.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		for tag, check := range decimalChecks {
			check := check
			_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				d, err := decimal.NewFromString(fl.Field().String())
				return err == nil && check(d)
			})
		}

		instance = v
	})
	return instance
}

// Struct validates s and returns the first failure as a
// *models.ValidationError for entity.
func Struct(entity string, s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &models.ValidationError{Entity: entity, Message: err.Error()}
	}

	fe := fieldErrs[0]
	return &models.ValidationError{
		Entity:  entity,
		Field:   fieldPath(fe),
		Message: message(fe),
	}
}

// fieldPath drops the top-level struct name from the namespace so nested
// items read as items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "ne":
		return fmt.Sprintf("must not be %s", fe.Param())
	case "dgt0":
		return "must be greater than 0"
	case "dgte0":
		return "must be at least 0"
	case "dne0":
		return "must not be 0"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
