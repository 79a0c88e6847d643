// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/recengine/internal/recommend"
)

// FieldError is one failed constraint, reported under the field's JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Error lists every failed constraint of one request body.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes recommend.ErrInvalidInteraction when an interaction type
// was rejected, so the API can answer INVALID_INTERACTION.
func (e *Error) Unwrap() error {
	for _, f := range e.Fields {
		if f.Tag == tagInteractionType {
			return recommend.ErrInvalidInteraction
		}
	}
	return nil
}

// Details is the error envelope's details object: the single failed field,
// or every failed field under "fields".
func (e *Error) Details() map[string]interface{} {
	switch len(e.Fields) {
	case 0:
		return nil
	case 1:
		return map[string]interface{}{"field": e.Fields[0].Field, "tag": e.Fields[0].Tag}
	default:
		return map[string]interface{}{"fields": e.Fields}
	}
}

const (
	tagInteractionType = "interaction_type"
	tagNotBlank        = "notblank"
)

// Validator returns the process-wide validator. It caches struct metadata,
// so it is built once.
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	// RegisterValidation only fails on an empty tag or nil func.
	_ = v.RegisterValidation(tagInteractionType, func(fl validator.FieldLevel) bool {
		_, err := recommend.ParseInteractionType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation(tagNotBlank, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
})

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// Struct validates s and returns nil when it passes.
func Struct(s interface{}) *Error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Field: "body", Tag: "invalid", Message: err.Error()}}}
	}
	out := &Error{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: message(fe)}
	}
	return out
}

func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	var unit string
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " entries"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case tagNotBlank:
		return field + " must not be blank"
	case tagInteractionType:
		return field + " must be one of view, click, like, purchase"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "min", "gte":
		if unit != "" {
			return fmt.Sprintf("%s must have at least %s%s", field, param, unit)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max", "lte":
		if unit != "" {
			return fmt.Sprintf("%s must have at most %s%s", field, param, unit)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
