package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeEvidenceUnavailable indicates the primary evidence source
	// (the vector knowledge index) could not be reached or errored
	ErrorTypeEvidenceUnavailable ErrorType = "EVIDENCE_UNAVAILABLE"

	// ErrorTypeSynthesisUnavailable indicates the completion provider kept
	// failing after the retry budget was exhausted
	ErrorTypeSynthesisUnavailable ErrorType = "SYNTHESIS_UNAVAILABLE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewEvidenceUnavailableError creates an error for a knowledge index outage.
// Fatal: no recommendation can be trusted without the primary evidence source.
func NewEvidenceUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeEvidenceUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewSynthesisUnavailableError creates an error for an exhausted completion provider
func NewSynthesisUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSynthesisUnavailable,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType of err when it is (or wraps) an AppError,
// and ErrorTypeInternal otherwise. Operators use this to tell a bad patient
// id from a knowledge base outage from an LLM outage.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err is (or wraps) an AppError of the given type
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
