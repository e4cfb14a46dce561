package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeResolution  ErrorType = "resolution"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypePageFetch   ErrorType = "page_fetch"
	ErrorTypeDownload    ErrorType = "download"
	ErrorTypeCancelled   ErrorType = "cancelled"
	ErrorTypeExport      ErrorType = "export"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a typed error carrying an optional HTTP status code and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Resolution reports that no user identifier could be found in a URL
func Resolution(rawURL string) *Error {
	return &Error{Type: ErrorTypeResolution, Message: fmt.Sprintf("no sec_user_id found in %q", rawURL)}
}

// Auth reports an invalid or expired cookie
func Auth(message string, err error) *Error {
	return &Error{Type: ErrorTypeAuth, Message: message, Err: err}
}

// PageFetch reports a failed listing request for the given page
func PageFetch(page int, err error) *Error {
	return &Error{Type: ErrorTypePageFetch, Message: fmt.Sprintf("page %d", page), Err: err}
}

// Download reports a failed media download
func Download(url string, err error) *Error {
	return &Error{Type: ErrorTypeDownload, Message: url, Err: err}
}

// Export reports a failed metadata export
func Export(path string, err error) *Error {
	return &Error{Type: ErrorTypeExport, Message: path, Err: err}
}

// FromStatusCode maps a non-2xx HTTP status to a typed error
func FromStatusCode(code int, message string) *Error {
	t := ErrorTypeUnknown
	switch {
	case code == 401 || code == 403:
		t = ErrorTypeAuth
	case code == 404:
		t = ErrorTypeNotFound
	case code == 429:
		t = ErrorTypeRateLimit
	case code >= 500:
		t = ErrorTypeServerError
	}
	return &Error{Type: t, Message: message, Code: code}
}

// IsType reports whether err, or any error it wraps, is a typed error of type t
func IsType(err error, t ErrorType) bool {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type == t
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeDownload, ErrorTypeUnknown:
		return true
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
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
