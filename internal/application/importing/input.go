package importing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateInput checks struct tags and turns violations into a
// ValidationFailed error with one entry per field.
func validateInput(in any) error {
	err := inputValidator.Struct(in)
	if err == nil {
		return nil
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return domain.NewError(domain.ErrUnexpected, "invalid input").WithCause(err)
	}

	fields := make([]domain.FieldError, 0, len(violations))
	for _, violation := range violations {
		fields = append(fields, domain.FieldError{
			Field:   violation.Field(),
			Message: violationMessage(violation),
		})
	}
	return domain.NewError(domain.ErrValidationFailed, "request is invalid").WithFields(fields...)
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// isEmail applies the same e-mail rule as request validation.
func isEmail(value string) bool {
	return inputValidator.Var(value, "required,email") == nil
}
