package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeTool        ErrorType = "tool"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a typed failure from one of the external collaborators
// (HTTP pages, command line tools, the messaging platform).
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// Field names the missing piece for not_found extraction failures.
	Field string
	// RetryAfter is the server-requested wait before the next attempt, if any.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Type, e.Field, e.Message)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing field in an externally controlled document.
func NotFound(field, message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Field: field, Message: message}
}

// Tool reports a failure of an external command line tool.
func Tool(message string, err error) *Error {
	return &Error{Type: ErrorTypeTool, Message: message, Err: err}
}

// RetryAfterOf returns the server-requested wait carried by err, or 0.
func RetryAfterOf(err error) time.Duration {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.RetryAfter
	}
	return 0
}

// IsType reports whether err carries the given error type anywhere in its chain.
func IsType(err error, t ErrorType) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type == t
	}
	return false
}

// MissingField returns the field name of a not_found error, or "".
func MissingField(err error) string {
	var typed *Error
	if errors.As(err, &typed) && typed.Type == ErrorTypeNotFound {
		return typed.Field
	}
	return ""
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeTool:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
