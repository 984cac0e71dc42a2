package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate

	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{6,24}$`)
)

// ValidationError represents a single field validation failure. Field is the
// JSON name; Message is a lowercase sentence safe to show to API clients.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		parts[i] = err.Message
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failure := ValidationError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
			failure.Message = describe(failure)
			failures = append(failures, failure)
		}
		return failures
	}

	return err
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

func describe(failure ValidationError) string {
	field := humanize(failure.Field)
	switch failure.Tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, failure.Param)
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, failure.Param)
	case "phone":
		return field + " must be a valid phone number"
	}
	if failure.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
}

// humanize turns "portal_account_id" into "portal account id".
func humanize(name string) string {
	if name == "" {
		return "field"
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		// phone accepts loosely formatted numbers; normalisation happens downstream.
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			value := strings.TrimSpace(fl.Field().String())
			return value == "" || phonePattern.MatchString(value)
		})
	})
	return validate
}
