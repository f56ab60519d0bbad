package lookup

import (
	"time"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
)

// RetryPolicy defines retry behavior for failed lookups.
//
// A request is attempted once and then retried up to MaxRetries times.
type RetryPolicy struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	// RateLimitBase is the wait after the first 429 when the service sends
	// no Retry-After header. It doubles with each further attempt.
	RateLimitBase time.Duration `yaml:"rate_limit_base"`
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     1 * time.Minute,
		BackoffFactor:  2.0,
		RateLimitBase:  5 * time.Second,
	}
}

// CalculateBackoff calculates the backoff duration for a given retry attempt.
func (p RetryPolicy) CalculateBackoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return p.InitialBackoff
	}

	backoff := p.InitialBackoff
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		if backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return backoff
}

// RateLimitWait returns how long to wait after a 429. A Retry-After value
// from the service wins; otherwise the wait is RateLimitBase * 2^retryCount.
func (p RetryPolicy) RateLimitWait(retryCount int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	wait := p.RateLimitBase
	for i := 0; i < retryCount; i++ {
		wait *= 2
		if p.MaxBackoff > 0 && wait > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return wait
}

// RetryDecision represents the decision about whether to retry.
type RetryDecision struct {
	ShouldRetry     bool
	BackoffDuration time.Duration
	Reason          string
}

// DecideRetry makes a retry decision based on the error and retry count.
func (p RetryPolicy) DecideRetry(err error, retryCount int) RetryDecision {
	if retryCount >= p.MaxRetries {
		return RetryDecision{
			ShouldRetry: false,
			Reason:      "max retries exceeded",
		}
	}

	le := qerrors.ClassifyError(err, "")
	if !qerrors.IsRetryable(le.Code) {
		return RetryDecision{
			ShouldRetry: false,
			Reason:      "permanent error: " + string(le.Code),
		}
	}

	if le.Code == qerrors.ErrRateLimit {
		return RetryDecision{
			ShouldRetry:     true,
			BackoffDuration: p.RateLimitWait(retryCount, le.RetryAfter),
			Reason:          "rate limited",
		}
	}

	return RetryDecision{
		ShouldRetry:     true,
		BackoffDuration: p.CalculateBackoff(retryCount),
		Reason:          "retryable error",
	}
}
