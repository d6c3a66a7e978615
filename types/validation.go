package types

import (
	"fmt"
	"net/http"
	"strings"
)

// FieldViolation describes one request-shape constraint that was not met.
type FieldViolation struct {
	// Loc is the location of the offending value, e.g. ["body", "query"].
	Loc []string
	// Message is the human-readable explanation.
	Message string
	// Type is the machine-readable violation type, e.g. "string_too_short".
	Type string
}

// Field returns the location joined by ".".
func (v FieldViolation) Field() string {
	return strings.Join(v.Loc, ".")
}

// RequestValidationError is raised when a request body does not match the
// expected schema. It always renders as 422 with one entry per violation.
type RequestValidationError struct {
	Violations []FieldViolation
}

// NewRequestValidationError builds a RequestValidationError from violations.
func NewRequestValidationError(violations ...FieldViolation) *RequestValidationError {
	return &RequestValidationError{Violations: violations}
}

func (e *RequestValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field()+": "+v.Message)
	}
	return "request validation failed: " + strings.Join(parts, "; ")
}

// HTTPError is a transport-level fault with an explicit status code, such as
// 405 for a wrong method or 413 for an oversized body.
type HTTPError struct {
	Status int
	Detail string
}

// NewHTTPError creates an HTTPError. An empty detail uses the status text.
func NewHTTPError(status int, detail string) *HTTPError {
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &HTTPError{Status: status, Detail: detail}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Detail)
}
