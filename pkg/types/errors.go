package types

import "fmt"

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeCodeInvalid  ErrorType = "code_invalid_or_expired"
	ErrorTypeUnavailable  ErrorType = "service_unavailable"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents a structured error in the HealthCard system
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    code,
		Message: message,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new conflict error naming the offending field
func NewConflictError(code, message, field string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

// NewCodeInvalidError creates an invalid-or-expired code error
func NewCodeInvalidError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeCodeInvalid,
		Code:    code,
		Message: message,
	}
}

// NewUnavailableError creates a new service unavailable error
func NewUnavailableError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err is an *AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInvalidOrExpired   = "INVALID_OR_EXPIRED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)
