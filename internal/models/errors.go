package models

import (
	"fmt"
	"net/http"

	apperrors "github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

// ErrorCode represents a custom error code for the application
type ErrorCode string

const (
	// General errors
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeForbidden  ErrorCode = "FORBIDDEN"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeTimeout    ErrorCode = "TIMEOUT"

	// Database errors
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY_ERROR"

	// Archive errors
	ErrCodeArchiveNotFound ErrorCode = "ARCHIVE_NOT_FOUND"

	// Service errors
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Internal   error                  `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error for error chain support
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Common error constructors

func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewValidationError(message string, details string) *AppError {
	return &AppError{
		Code:       ErrCodeValidation,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

func NewForbiddenError(siteID int) *AppError {
	return &AppError{
		Code:       ErrCodeForbidden,
		Message:    "You can't access this resource as it requires 'view' access for the website",
		StatusCode: http.StatusForbidden,
		Metadata: map[string]interface{}{
			"idSite": siteID,
		},
	}
}

func NewDatabaseError(message string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeDatabaseQuery,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

func NewDatabaseConnectionError(err error) *AppError {
	return &AppError{
		Code:       ErrCodeDatabaseConnection,
		Message:    "Database is unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Internal:   err,
	}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeRateLimitExceeded,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewTimeoutError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
	}
}

// FromError maps service errors onto the HTTP error envelope.
func FromError(err error, siteID int) *AppError {
	var appErr *AppError
	switch {
	case apperrors.As(err, &appErr):
		return appErr
	case apperrors.IsForbidden(err):
		e := NewForbiddenError(siteID)
		e.Internal = err
		return e
	case apperrors.Is(err, apperrors.ErrArchiveNotFound):
		return &AppError{
			Code:       ErrCodeArchiveNotFound,
			Message:    "No archived data for the requested period",
			StatusCode: http.StatusNotFound,
			Internal:   err,
		}
	case apperrors.IsNotFound(err):
		e := NewNotFoundError("Resource not found")
		e.Internal = err
		return e
	case apperrors.IsInvalidInput(err):
		e := NewValidationError("Invalid request parameters", err.Error())
		e.Internal = err
		return e
	case apperrors.IsTimeout(err):
		e := NewTimeoutError("Request took too long to process")
		e.Internal = err
		return e
	case apperrors.Is(err, apperrors.ErrDatabaseConnection):
		return NewDatabaseConnectionError(err)
	}
	return NewDatabaseError("Failed to load geo visits", err)
}
