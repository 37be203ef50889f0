// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("platform", validatePlatform)
	validate.RegisterValidation("end_reason", validateEndReason)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validatePlatform(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "web", "mobile":
		return true
	}
	return false
}

func validateEndReason(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "mutual_agreement", "owner_terminated", "investor_terminated", "admin_terminated", "breach_of_contract":
		return true
	}
	return false
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min", "gte":
		return e.Field() + " must be at least " + e.Param()
	case "max", "lte":
		return e.Field() + " must be at most " + e.Param()
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "platform":
		return "platform must be web or mobile"
	case "end_reason":
		return e.Field() + " is not a recognised termination reason"
	default:
		return e.Field() + " is invalid"
	}
}
