package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeRegistry_Completeness(t *testing.T) {
	allCodes := []ErrorCode{
		ErrTimeout,
		ErrRateLimit,
		ErrServiceUnavailable,
		ErrMalformedPayload,
		ErrContextCancelled,
		ErrClientRequest,
		ErrLookupFailed,
	}

	for _, code := range allCodes {
		t.Run(string(code), func(t *testing.T) {
			info, ok := ErrorCodeRegistry[code]
			assert.True(t, ok, "ErrorCode %s should be in registry", code)
			assert.Equal(t, code, info.Code, "Registry entry should have matching code")
			assert.NotEmpty(t, info.Description, "Description should not be empty")
			assert.NotEmpty(t, info.SuggestedAction, "SuggestedAction should not be empty")
		})
	}
}

func TestIsRetryable_ErrorCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected bool
	}{
		{ErrTimeout, true},
		{ErrRateLimit, true},
		{ErrServiceUnavailable, true},
		{ErrMalformedPayload, true},
		{ErrContextCancelled, false},
		{ErrClientRequest, false},
		{ErrLookupFailed, false},
		{ErrorCode("unknown_code"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.code))
		})
	}
}

func TestGetSuggestedAction_Unknown(t *testing.T) {
	assert.Equal(t, "Run with --debug and check the logs", GetSuggestedAction(ErrorCode("nope")))
	assert.Equal(t, "Unknown error", GetDescription(ErrorCode("nope")))
}
