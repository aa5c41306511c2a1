package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeLoad        ErrorType = "load"
	ErrorTypeDecode      ErrorType = "decode"
	ErrorTypePredicate   ErrorType = "predicate"
	ErrorTypeTransform   ErrorType = "transform"
	ErrorTypeCredential  ErrorType = "credential"
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeInternal    ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewLoadError reports a classification source that could not be turned into a predicate.
func NewLoadError(message string, cause error) *AppError {
	return newError(ErrorTypeLoad, http.StatusUnprocessableEntity, message, cause)
}

// NewDecodeError reports an image file that could not be decoded.
func NewDecodeError(message string, cause error) *AppError {
	return newError(ErrorTypeDecode, http.StatusUnprocessableEntity, message, cause)
}

// NewPredicateError reports a failure raised while a predicate was evaluated.
func NewPredicateError(message string, cause error) *AppError {
	return newError(ErrorTypePredicate, http.StatusUnprocessableEntity, message, cause)
}

// NewTransformError reports a failure in pre- or post-processing code.
func NewTransformError(message string, cause error) *AppError {
	return newError(ErrorTypeTransform, http.StatusUnprocessableEntity, message, cause)
}

// NewCredentialError reports a missing or rejected cloud OCR key pair.
func NewCredentialError(message string, cause error) *AppError {
	return newError(ErrorTypeCredential, http.StatusUnauthorized, message, cause)
}

// NewPersistenceError reports an unreadable or unwritable registry.
func NewPersistenceError(message string, cause error) *AppError {
	return newError(ErrorTypePersistence, http.StatusInternalServerError, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewConflictError reports a request that collides with work already in progress.
func NewConflictError(message string, cause error) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
