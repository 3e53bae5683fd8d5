// Package errors carries typed, coded errors from the domain to the HTTP edge.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for the HTTP envelope.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeMalformed    Code = "MALFORMED_PAYLOAD"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is surfaced.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized: {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:    {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:     {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:     {http.StatusConflict, true, "conflict detected", false},
	CodeMalformed:    {http.StatusUnprocessableEntity, false, "stored payload could not be decoded", true},
	CodeInternal:     {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:   {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// MetadataFor returns the metadata of code, falling back to CodeInternal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with a caller-facing message and optional details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets structured details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether any typed error in the chain carries code.
func IsCode(err error, code Code) bool {
	for typed := As(err); typed != nil; typed = As(typed.cause) {
		if typed.code == code {
			return true
		}
	}
	return false
}

// HTTPStatus returns the status for err; untyped errors map to 500.
func HTTPStatus(err error) int {
	return MetadataFor(As(err).Code()).HTTPStatus
}

// Retryable reports whether the outermost typed error is marked retryable.
// Untyped errors are treated as retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.code).Retryable
}
