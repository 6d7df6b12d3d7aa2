package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationError is one field-level request problem.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

var validate = newValidator()

// newValidator reports fields by the name the client sent: path param,
// query key, then JSON key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"param", "query", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ReadAndValidateRequest binds path, query and body into req, applies
// `default` tags and validates it. It returns nil when req is valid.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, len(fieldErrs))
		for i, fe := range fieldErrs {
			field := fieldPath(fe)
			msg, params := describe(fe, field)
			out[i] = ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   field,
				Message: msg,
				Params:  params,
			}
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

// fieldPath is the dotted client-side name of a field, such as
// "features.model_name", without the request type.
func fieldPath(fe validator.FieldError) string {
	if _, path, ok := strings.Cut(fe.Namespace(), "."); ok && path != "" {
		return path
	}
	return fe.Field()
}

// describe renders a readable message and the rule's parameters.
func describe(fe validator.FieldError, field string) (string, map[string]interface{}) {
	p := fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required", nil
	case "numeric":
		return field + " must be a number", nil
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, p, unit), map[string]interface{}{"max": p}
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, p, unit), map[string]interface{}{"min": p}
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, p), map[string]interface{}{"max": p}
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, p), map[string]interface{}{"min": p}
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, p), map[string]interface{}{"min": p}
	case "oneof":
		opts := strings.Fields(p)
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(opts, ", ")), map[string]interface{}{"options": opts}
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag()), nil
}
