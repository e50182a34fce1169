package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// usernamePattern is the only accepted username shape
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with json field names and the
// marketplace custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return IsValidUsername(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("register username validation: %v", err))
		}
		validate = v
	})
	return validate
}

// IsValidUsername reports whether s is 3-20 lowercase letters, digits or underscores
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// ValidateUsername returns a field error when the username is not acceptable
func ValidateUsername(s string) *FieldError {
	if s == "" {
		return &FieldError{Field: "username", Message: "username is required"}
	}
	if !IsValidUsername(s) {
		return &FieldError{Field: "username", Message: "username must be 3-20 characters of lowercase letters, numbers or underscores"}
	}
	return nil
}

// validateStruct runs struct tag validation and converts failures to FieldErrors
func validateStruct(s interface{}) []FieldError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		out = append(out, FieldError{Field: field, Message: fieldMessage(field, fe)})
	}
	return out
}

// fieldPath drops the struct type name: "CreateListingRequest.auction.start_price" -> "auction.start_price"
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func fieldMessage(field string, fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "username":
		return "username must be 3-20 characters of lowercase letters, numbers or underscores"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		if isString {
			return fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be %s or less", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
