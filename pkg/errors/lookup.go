package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrorCode represents a classified lookup failure.
type ErrorCode string

const (
	ErrTimeout            ErrorCode = "timeout"
	ErrRateLimit          ErrorCode = "rate_limit"
	ErrServiceUnavailable ErrorCode = "service_unavailable"
	ErrMalformedPayload   ErrorCode = "malformed_payload"
	ErrContextCancelled   ErrorCode = "context_cancelled"
	ErrClientRequest      ErrorCode = "client_request"
	ErrLookupFailed       ErrorCode = "lookup_failed"
)

// LookupError is a structured error for failures talking to the external
// search services. StatusCode is zero when no HTTP response was received.
type LookupError struct {
	Code       ErrorCode
	Stage      string
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *LookupError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s: HTTP %d: %s", e.Code, e.Stage, e.StatusCode, e.Message)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LookupError) Unwrap() error {
	return e.Cause
}

// NewStatusError builds a LookupError from an HTTP status code.
func NewStatusError(stage string, status int, retryAfter time.Duration) *LookupError {
	le := &LookupError{
		Stage:      stage,
		StatusCode: status,
		RetryAfter: retryAfter,
	}
	switch {
	case status == 429:
		le.Code = ErrRateLimit
		le.Message = "too many requests"
	case status >= 500:
		le.Code = ErrServiceUnavailable
		le.Message = "server error"
	case status >= 400:
		le.Code = ErrClientRequest
		le.Message = "request rejected"
	default:
		le.Code = ErrLookupFailed
		le.Message = "unexpected status"
	}
	return le
}

// NewMalformedError wraps a decode failure of a response body.
func NewMalformedError(stage string, cause error) *LookupError {
	return &LookupError{
		Code:    ErrMalformedPayload,
		Stage:   stage,
		Message: "decoding response",
		Cause:   cause,
	}
}

// ClassifyError inspects an error and returns a *LookupError with the appropriate code.
// If the error is already a *LookupError it is returned as is.
func ClassifyError(err error, stage string) *LookupError {
	if err == nil {
		return nil
	}

	var existing *LookupError
	if errors.As(err, &existing) {
		return existing
	}

	le := &LookupError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		le.Code = ErrTimeout
		le.Message = "operation timed out"
		return le
	}

	if errors.Is(err, context.Canceled) {
		le.Code = ErrContextCancelled
		le.Message = "operation cancelled"
		return le
	}

	// Transport errors carry the request URL, and with it the user's query
	// text. Only the underlying cause is inspected.
	cause := err
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		cause = ue.Err
	}
	le.Message = cause.Error()

	if code, ok := classifyTyped(cause); ok {
		le.Code = code
		return le
	}

	lower := strings.ToLower(le.Message)
	switch {
	case strings.Contains(lower, "i/o timeout") || strings.Contains(lower, "deadline exceeded"):
		le.Code = ErrTimeout
	case strings.Contains(lower, "429") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "rate limit"):
		le.Code = ErrRateLimit
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "service unavailable"):
		le.Code = ErrServiceUnavailable
	case strings.Contains(lower, "invalid character") || strings.Contains(lower, "cannot unmarshal") ||
		strings.Contains(lower, "unexpected end of json"):
		le.Code = ErrMalformedPayload
	default:
		le.Code = ErrLookupFailed
	}
	return le
}

// classifyTyped maps well-known error types from net, io and encoding/json.
func classifyTyped(err error) (ErrorCode, bool) {
	var (
		netErr    net.Error
		dnsErr    *net.DNSError
		opErr     *net.OpError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout, true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrServiceUnavailable, true
	case errors.As(err, &dnsErr):
		return ErrServiceUnavailable, true
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return ErrServiceUnavailable, true
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return ErrMalformedPayload, true
	}
	return "", false
}

// IsRateLimited reports whether err is a rate limit signal from the service.
func IsRateLimited(err error) bool {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Code == ErrRateLimit
	}
	return false
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
func IsErrorRetryable(err error) bool {
	var le *LookupError
	if errors.As(err, &le) {
		return IsRetryable(le.Code)
	}
	return false
}
