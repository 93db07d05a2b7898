// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package validation provides struct validation using go-playground/validator v10.
// It exposes a thread-safe singleton validator used at the realtime router
// boundary: every decoded wire payload is validated before any handler sees it.
//
//	if err := validation.ValidateStruct(&payload); err != nil {
//	    // drop the message and log err
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError represents a single field validation failure.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the struct field name that failed validation.
func (e *FieldError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string {
	return e.tag
}

// Param returns the parameter for the validation tag (e.g. "90" for "max=90").
func (e *FieldError) Param() string {
	return e.param
}

// Error returns a human-readable error message.
func (e *FieldError) Error() string {
	return e.message
}

// PayloadError is a collection of field validation failures for one payload.
type PayloadError struct {
	errors []FieldError
}

// Errors returns the individual field errors.
func (pe *PayloadError) Errors() []FieldError {
	return pe.errors
}

// Error implements the error interface with a combined message.
func (pe *PayloadError) Error() string {
	if len(pe.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(pe.errors))
	for i, err := range pe.errors {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the singleton validator instance. Thread-safe.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil if validation passes, or *PayloadError describing every
// failing field.
func ValidateStruct(s interface{}) *PayloadError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &PayloadError{
			errors: []FieldError{{
				field:   "unknown",
				tag:     "unknown",
				message: err.Error(),
			}},
		}
	}

	fieldErrors := make([]FieldError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = FieldError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			message: fmt.Sprintf("%s failed %s validation", fieldErr.Field(), fieldErr.Tag()),
		}
	}
	return &PayloadError{errors: fieldErrors}
}
