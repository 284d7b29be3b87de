package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrArchiveNotFound indicates no archived record exists for the requested site/period/segment
	ErrArchiveNotFound = fmt.Errorf("archive not processed: %w", ErrNotFound)

	// ErrSiteNotFound indicates an unknown site id
	ErrSiteNotFound = fmt.Errorf("site: %w", ErrNotFound)

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabaseConnection indicates a database connection issue
	ErrDatabaseConnection = errors.New("database connection error")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrForbidden indicates the caller lacks view access to the site
	ErrForbidden = errors.New("view access required")
)

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if an error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message
func New(message string) error {
	return errors.New(message)
}

// InvalidInputf reports a validation failure that callers can match with IsInvalidInput.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Join joins multiple errors into one
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsForbidden checks if an error is an access denied error
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
