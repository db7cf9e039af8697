package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

//ValidationErrors maps the JSON name of an invalid field to a human readable message
type ValidationErrors map[string]string

func (ve ValidationErrors) Error() string {
	fields := ve.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+ve[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

//Fields returns the invalid field names in a stable order
func (ve ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(ve))
	for f := range ve {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

//AsValidationErrors extracts ValidationErrors from err, if any
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return lowerFirst(fld.Name)
		}
		return name
	})
	return v
}

func validateRecord(record interface{}) error {
	err := validate.Struct(record)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	result := ValidationErrors{}
	for _, fe := range fieldErrors {
		if _, exists := result[fe.Field()]; !exists {
			result[fe.Field()] = messageFor(fe)
		}
	}
	return result
}

func messageFor(fe validator.FieldError) string {
	isText := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return "is required"
	case "max", "lte":
		if isText {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min", "gte":
		if isText {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "len":
		if fe.Field() == "phone" {
			return fmt.Sprintf("must be exactly %s digits", fe.Param())
		}
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "gtfield":
		return fmt.Sprintf("must be greater than %s", lowerFirst(fe.Param()))
	case "eqfield":
		return fmt.Sprintf("must match %s", lowerFirst(fe.Param()))
	}

	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatRange(min, max float64) string {
	return strconv.FormatFloat(min, 'f', -1, 64) + "-" + strconv.FormatFloat(max, 'f', -1, 64)
}

func formatReading(value float64, unit string) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if unit != "" {
		s += " " + unit
	}
	return s
}
