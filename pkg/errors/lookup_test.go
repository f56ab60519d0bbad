package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func TestClassifyError_Nil(t *testing.T) {
	if result := ClassifyError(nil, "wikidata"); result != nil {
		t.Errorf("Expected nil for nil error, got %v", result)
	}
}

func TestClassifyError_DeadlineExceeded(t *testing.T) {
	err := fmt.Errorf("get: %w", context.DeadlineExceeded)
	result := ClassifyError(err, "wikidata")

	if result == nil {
		t.Fatal("Expected non-nil LookupError")
	}
	if result.Code != ErrTimeout {
		t.Errorf("Expected ErrTimeout, got %s", result.Code)
	}
	if result.Stage != "wikidata" {
		t.Errorf("Expected stage 'wikidata', got %s", result.Stage)
	}
	if !errors.Is(result, context.DeadlineExceeded) {
		t.Errorf("Expected cause chain to contain context.DeadlineExceeded")
	}
}

func TestClassifyError_Canceled(t *testing.T) {
	result := ClassifyError(context.Canceled, "wikipedia")
	if result.Code != ErrContextCancelled {
		t.Errorf("Expected ErrContextCancelled, got %s", result.Code)
	}
	if IsErrorRetryable(result) {
		t.Errorf("Cancelled lookups must not be retried")
	}
}

func TestClassifyError_MessagePatterns(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCode
	}{
		{"dial tcp: i/o timeout", ErrTimeout},
		{"HTTP 429 Too Many Requests", ErrRateLimit},
		{"dial tcp 127.0.0.1:80: connect: connection refused", ErrServiceUnavailable},
		{"lookup www.wikidata.org: no such host", ErrServiceUnavailable},
		{"invalid character '<' looking for beginning of value", ErrMalformedPayload},
		{"json: cannot unmarshal string into Go value of type int", ErrMalformedPayload},
		{"something odd", ErrLookupFailed},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			result := ClassifyError(errors.New(tt.msg), "wikidata")
			if result.Code != tt.want {
				t.Errorf("ClassifyError(%q) = %s, want %s", tt.msg, result.Code, tt.want)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "read tcp: deadline reached" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyError_IgnoresQueryTextInURL(t *testing.T) {
	// Search text that happens to contain classifier keywords.
	for _, query := range []string{"Geoffrey Kneller", "timeout", "429", "unavailable"} {
		err := &url.Error{
			Op:  "Get",
			URL: "https://www.wikidata.org/w/api.php?search=" + url.QueryEscape(query),
			Err: errors.New("x509: certificate signed by unknown authority"),
		}
		result := ClassifyError(err, "wikidata")
		if result.Code != ErrLookupFailed {
			t.Errorf("query %q: code = %s, want %s", query, result.Code, ErrLookupFailed)
		}
		if IsErrorRetryable(result) {
			t.Errorf("query %q: certificate failures must not be retried", query)
		}
		if result.Message != "x509: certificate signed by unknown authority" {
			t.Errorf("query %q: message = %q, want the cause only", query, result.Message)
		}
	}
}

func TestClassifyError_TypedCauses(t *testing.T) {
	var syntaxErr error = json.Unmarshal([]byte("<html>"), &struct{}{})
	wrap := func(cause error) error {
		return &url.Error{Op: "Get", URL: "https://example.org/?search=Geoffrey", Err: cause}
	}

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"net timeout", wrap(timeoutError{}), ErrTimeout},
		{"eof", wrap(io.EOF), ErrServiceUnavailable},
		{"unexpected eof", wrap(io.ErrUnexpectedEOF), ErrServiceUnavailable},
		{"refused", wrap(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}), ErrServiceUnavailable},
		{"dns", wrap(&net.DNSError{Err: "no such host", Name: "www.wikidata.org", IsNotFound: true}), ErrServiceUnavailable},
		{"json syntax", fmt.Errorf("decode: %w", syntaxErr), ErrMalformedPayload},
		{"plain error with eof in text", errors.New("Geoffrey"), ErrLookupFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err, "wikidata").Code; got != tt.want {
				t.Errorf("ClassifyError() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyError_PassesThroughLookupError(t *testing.T) {
	original := NewStatusError("wikidata", 503, 0)
	wrapped := fmt.Errorf("search: %w", original)

	if got := ClassifyError(wrapped, "other"); got != original {
		t.Errorf("Expected the wrapped LookupError to be returned unchanged")
	}
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		status    int
		want      ErrorCode
		retryable bool
	}{
		{429, ErrRateLimit, true},
		{500, ErrServiceUnavailable, true},
		{503, ErrServiceUnavailable, true},
		{404, ErrClientRequest, false},
		{302, ErrLookupFailed, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := NewStatusError("wikidata", tt.status, 0)
			if err.Code != tt.want {
				t.Errorf("NewStatusError(%d).Code = %s, want %s", tt.status, err.Code, tt.want)
			}
			if got := IsErrorRetryable(err); got != tt.retryable {
				t.Errorf("IsErrorRetryable(%d) = %v, want %v", tt.status, got, tt.retryable)
			}
		})
	}
}

func TestLookupError_Error(t *testing.T) {
	err := NewStatusError("wikidata", 429, 3*time.Second)
	want := "rate_limit: wikidata: HTTP 429: too many requests"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !IsRateLimited(fmt.Errorf("wrap: %w", err)) {
		t.Errorf("IsRateLimited should see through wrapping")
	}

	malformed := NewMalformedError("wikipedia", errors.New("unexpected EOF"))
	if malformed.Error() != "malformed_payload: wikipedia: decoding response" {
		t.Errorf("unexpected message %q", malformed.Error())
	}
}
