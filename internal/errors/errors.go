package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Base error types
var (
	ErrRequestInvalid   = errors.New("invalid request")
	ErrAuthMissing      = errors.New("auth missing")
	ErrRateLimited      = errors.New("rate limited")
	ErrTimeout          = errors.New("timeout")
	ErrUpstream         = errors.New("upstream failure")
	ErrMalformed        = errors.New("malformed response")
	ErrDeadlineExceeded = errors.New("session deadline exceeded")
	ErrNotConfigured    = errors.New("not configured")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeRequest  ErrorType = "request"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeRate     ErrorType = "rate_limited"
	ErrorTypeTimeout  ErrorType = "timeout"
	ErrorTypeUpstream ErrorType = "upstream"
	ErrorTypeLM       ErrorType = "lm"
	ErrorTypeDeadline ErrorType = "deadline"
	ErrorTypeFatal    ErrorType = "fatal"
)

// ResearchError is a structured error for research operations
type ResearchError struct {
	Type       ErrorType
	Op         string // Operation that failed (e.g., "search", "plan", "finalize")
	Provider   string // Provider name where the error occurred
	Err        error  // Underlying error
	StatusCode int    // HTTP status code if applicable
	Timestamp  time.Time
	Retryable  bool
}

func (e *ResearchError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ResearchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *ResearchError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrRequestInvalid:
		return e.Type == ErrorTypeRequest
	case ErrAuthMissing:
		return e.Type == ErrorTypeAuth
	case ErrRateLimited:
		return e.Type == ErrorTypeRate
	case ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ErrUpstream:
		return e.Type == ErrorTypeUpstream
	case ErrDeadlineExceeded:
		return e.Type == ErrorTypeDeadline
	}

	return errors.Is(e.Err, target)
}

// New creates a new ResearchError
func New(errorType ErrorType, op, provider string, err error) *ResearchError {
	return &ResearchError{
		Type:      errorType,
		Op:        op,
		Provider:  provider,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: isRetryable(errorType),
	}
}

// WithStatusCode adds HTTP status code to the error
func (e *ResearchError) WithStatusCode(code int) *ResearchError {
	e.StatusCode = code
	if code >= 500 || code == 429 || code == 408 {
		e.Retryable = true
	} else if code >= 400 && code < 500 {
		e.Retryable = false
	}
	return e
}

// isRetryable determines if an error should be retried
func isRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTimeout, ErrorTypeUpstream, ErrorTypeRate:
		return true
	default:
		return false
	}
}

// Helper functions

// WrapProviderError wraps an upstream provider error with context,
// classifying it by HTTP status code
func WrapProviderError(op, provider string, err error, statusCode int) error {
	errorType := ErrorTypeUpstream
	switch {
	case statusCode == 401 || statusCode == 403:
		errorType = ErrorTypeAuth
	case statusCode == 429:
		errorType = ErrorTypeRate
	}
	return New(errorType, op, provider, err).WithStatusCode(statusCode)
}

// WrapLMError wraps a language-model error with context
func WrapLMError(op string, err error) error {
	return New(ErrorTypeLM, op, "lm", err)
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	var resErr *ResearchError
	if errors.As(err, &resErr) {
		return resErr.Retryable
	}

	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUpstream) || errors.Is(err, ErrRateLimited)
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var resErr *ResearchError
	if errors.As(err, &resErr) {
		if resErr.Type == ErrorTypeAuth {
			return true
		}
		if resErr.StatusCode == 401 || resErr.StatusCode == 403 {
			return true
		}
	}

	if errors.Is(err, ErrAuthMissing) {
		return true
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "401") ||
		strings.Contains(errMsg, "403") ||
		strings.Contains(errMsg, "unauthorized") ||
		strings.Contains(errMsg, "forbidden")
}
