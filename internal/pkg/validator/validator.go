package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
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

	registerCustomValidations()
}

func registerCustomValidations() {
	// Size variant is a closed enumeration; anything else is rejected at write time
	validate.RegisterValidation("size_variant", func(fl validator.FieldLevel) bool {
		variant := fl.Field().String()
		validVariants := []string{"original", "thumb", "medium", "large", ""}
		for _, v := range validVariants {
			if variant == v {
				return true
			}
		}
		return false
	})

	// Content hash is a fixed-length hex digest used for deduplication
	validate.RegisterValidation("content_hash", func(fl validator.FieldLevel) bool {
		hash := fl.Field().String()
		if hash == "" {
			return true
		}
		if len(hash) != 64 {
			return false
		}
		for _, c := range hash {
			if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
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

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "url":
			errors[field] = "Invalid URL format"
		case "uuid":
			errors[field] = "Invalid UUID format"
		case "size_variant":
			errors[field] = "Invalid size variant. Must be: original, thumb, medium, or large"
		case "content_hash":
			errors[field] = "Invalid content hash. Must be a 64-character hex digest"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
