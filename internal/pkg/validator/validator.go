package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Provider codes are lowercase slugs: moneymotion, robokassa, manual.
	validate.RegisterValidation("provider_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == "" {
			return false
		}
		for _, r := range code {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
				return false
			}
		}
		return true
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out[field] = "This field is required"
		case "uuid", "uuid4":
			out[field] = "Must be a valid UUID"
		case "gte":
			out[field] = "Value must be at least " + fe.Param()
		case "lte":
			out[field] = "Value must be at most " + fe.Param()
		case "provider_code":
			out[field] = "Invalid provider code"
		default:
			out[field] = "Invalid value"
		}
	}
	return out
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
