package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrTimeout: {
		Code:            ErrTimeout,
		Retryable:       true,
		Description:     "Request to the search service exceeded its time limit",
		SuggestedAction: "Raise lookup.request_timeout in config.yaml or retry later",
	},
	ErrRateLimit: {
		Code:            ErrRateLimit,
		Retryable:       true,
		Description:     "Search service rate limit exceeded",
		SuggestedAction: "Increase lookup.min_delay, or store an API token: qidlink auth login",
	},
	ErrServiceUnavailable: {
		Code:            ErrServiceUnavailable,
		Retryable:       true,
		Description:     "Search service unreachable or returned a server error",
		SuggestedAction: "Check network connectivity and service status, then rerun; cached queries are kept",
	},
	ErrMalformedPayload: {
		Code:            ErrMalformedPayload,
		Retryable:       true,
		Description:     "Search service returned a body that could not be decoded",
		SuggestedAction: "Usually transient; inspect with: qidlink search <query> --debug",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Retryable:       false,
		Description:     "Lookup cancelled by user or shutdown",
		SuggestedAction: "Rerun the command; progress up to the last checkpoint is kept",
	},
	ErrClientRequest: {
		Code:            ErrClientRequest,
		Retryable:       false,
		Description:     "Search service rejected the request",
		SuggestedAction: "Check lookup endpoints and user agent in config.yaml",
	},
	ErrLookupFailed: {
		Code:            ErrLookupFailed,
		Retryable:       false,
		Description:     "Unclassified lookup error",
		SuggestedAction: "Run with --debug and check the logs",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Run with --debug and check the logs"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
