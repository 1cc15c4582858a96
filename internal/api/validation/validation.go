package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return IsValidOTP(fl.Field().String())
	})
}

// Struct validates s against its `validate` tags and returns one message per
// failing field, keyed by JSON name. An empty map means s is valid.
func Struct(s interface{}) map[string]string {
	details := make(map[string]string)

	err := validate.Struct(s)
	if err == nil {
		return details
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		details["_"] = err.Error()
		return details
	}

	for _, fe := range verrs {
		if _, seen := details[fe.Field()]; !seen {
			details[fe.Field()] = fieldMessage(fe)
		}
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "otp":
		return fmt.Sprintf("%s must be a 6 digit code", field)
	default:
		return fmt.Sprintf("%s failed validation for '%s'", field, fe.Tag())
	}
}

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return validate.Var(email, "required,email") == nil
}

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return validate.Var(id, "required,uuid") == nil
}

// IsValidOTP reports whether code is a six digit one-time code.
func IsValidOTP(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateString truncates a string to maxLen characters
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
