package directory

import (
	"errors"
	"fmt"
)

// ErrorCategory decides whether a failed call is retried.
type ErrorCategory int

const (
	// Recoverable errors are retried with exponential backoff.
	Recoverable ErrorCategory = iota
	// Irrecoverable errors fail immediately.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError wraps a directory failure with its retry category.
type ClassifiedError struct {
	Category   ErrorCategory
	StatusCode int    // 0 for network errors
	Body       string // response body for debugging
	Underlying error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error { return e.Underlying }

// ClassifyHTTPError maps a status code to a category: 4xx is irrecoverable
// except 408 and 429; everything else is retried.
func ClassifyHTTPError(statusCode int, body string, underlying error) *ClassifiedError {
	category := Recoverable
	if statusCode >= 400 && statusCode < 500 && statusCode != 408 && statusCode != 429 {
		category = Irrecoverable
	}
	return &ClassifiedError{Category: category, StatusCode: statusCode, Body: body, Underlying: underlying}
}

// NewHTTPError creates a classified error for a non-2xx response.
func NewHTTPError(statusCode int, body, operation string) *ClassifiedError {
	return ClassifyHTTPError(statusCode, body, fmt.Errorf("%s failed: HTTP %d", operation, statusCode))
}

// NewNetworkError creates a recoverable error for transport failures.
func NewNetworkError(operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s network error: %w", operation, err),
	}
}

// IsIrrecoverable reports whether err carries the Irrecoverable category.
func IsIrrecoverable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category == Irrecoverable
	}
	return false
}
