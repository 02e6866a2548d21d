package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is a stable identifier for a completion failure class, used as
// a log field and metric label.
type ErrorCode string

const (
	ErrTimeout     ErrorCode = "LLM_TIMEOUT"
	ErrRateLimited ErrorCode = "LLM_RATE_LIMITED"
	ErrUnavailable ErrorCode = "LLM_UNAVAILABLE"
	ErrBadResponse ErrorCode = "LLM_BAD_RESPONSE"
	ErrCanceled    ErrorCode = "LLM_CANCELED"
)

// Error is a classified completion failure. Provider implementations are
// encouraged to return it so degradation decisions and metrics stay
// accurate; plain errors are classified best-effort by Classify.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a classified error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches the underlying error and returns e for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks whether the failure is worth retrying. The extraction
// path never retries; the flag is for host applications that do.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Classify maps an arbitrary completion error to an ErrorCode. Classified
// errors keep their own code; context errors map to timeout/cancel; anything
// else is treated as the service being unavailable.
func Classify(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	}
	return ErrUnavailable
}
