package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types carried in CustomError.Type
const (
	ErrorTypeValidation  = "validation"
	ErrorTypeNotFound    = "notFound"
	ErrorTypeSchema      = "schema"
	ErrorTypeUnsupported = "unsupported"
)

type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Err     error  `json:"-"`
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s [type: %s]: %v", e.Code, e.Message, e.Type, e.Err)
	}
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// Wrap attaches a cause to the error and returns it
func (e *CustomError) Wrap(err error) *CustomError {
	e.Err = err
	return e
}

// NewValidationError reports a malformed input payload
func NewValidationError(format string, args ...any) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
		Type:    ErrorTypeValidation,
	}
}

// NewNotFoundError reports a missing entity
func NewNotFoundError(format string, args ...any) *CustomError {
	return &CustomError{
		Code:    http.StatusNotFound,
		Message: fmt.Sprintf(format, args...),
		Type:    ErrorTypeNotFound,
	}
}

// NewSchemaError reports an invalid schema. These are fatal at boot.
func NewSchemaError(format string, args ...any) *CustomError {
	return &CustomError{
		Code:    http.StatusInternalServerError,
		Message: fmt.Sprintf(format, args...),
		Type:    ErrorTypeSchema,
	}
}

// NewUnsupportedError reports a configuration this service refuses to handle
func NewUnsupportedError(format string, args ...any) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
		Type:    ErrorTypeUnsupported,
	}
}

func IsValidation(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

func IsSchema(err error) bool {
	return hasType(err, ErrorTypeSchema)
}

func IsUnsupported(err error) bool {
	return hasType(err, ErrorTypeUnsupported)
}

// StatusCode returns the http status for err, 500 when it is not a CustomError
func StatusCode(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return http.StatusInternalServerError
}

func hasType(err error, errorType string) bool {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Type == errorType
	}
	return false
}
