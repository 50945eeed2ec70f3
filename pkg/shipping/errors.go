package shipping

import (
	"errors"
	"fmt"
)

// CourierError represents an error returned by the courier API.
type CourierError struct {
	Operation  string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *CourierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Operation, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Operation, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CourierError) Unwrap() error {
	return e.Cause
}

// Is matches another CourierError with the same code.
func (e *CourierError) Is(target error) bool {
	t, ok := target.(*CourierError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewCourierError creates a new CourierError.
func NewCourierError(operation, code, message string) *CourierError {
	return &CourierError{
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// WithCause adds a cause to the error.
func (e *CourierError) WithCause(err error) *CourierError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *CourierError) WithStatusCode(code int) *CourierError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *CourierError) WithRetryable(retryable bool) *CourierError {
	e.Retryable = retryable
	return e
}

var (
	// ErrInstanceNotFound indicates no configuration exists for the instance.
	ErrInstanceNotFound = errors.New("shipping instance not found")

	// ErrInstanceUnusable indicates the instance is disabled or incompletely configured.
	ErrInstanceUnusable = errors.New("shipping instance not usable")

	// ErrMissingDestination indicates the destination lacks the city or county needed for pricing.
	ErrMissingDestination = errors.New("destination incomplete")

	// ErrServiceUnavailable indicates the courier API is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAuthenticationFailed indicates the API key was rejected.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the courier API rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidResponse indicates the courier API answered with a body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var courierErr *CourierError
	if errors.As(err, &courierErr) {
		return courierErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}
