package client

import (
	"context"
	"time"
)

// RetryPolicy bounds retry behavior for idempotent calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries (minimum 1).
	MaxAttempts int

	// Backoff is the base wait between attempts; attempt n waits n*Backoff.
	Backoff time.Duration
}

var defaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 200 * time.Millisecond}

// withRetry runs fn up to policy.MaxAttempts times, retrying only errors
// the taxonomy marks retryable (transport failures, 5xx). The wait between
// attempts is context-aware: cancellation cuts the backoff short.
func withRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return newAPIError(CodeNetwork, "request canceled", false, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || !IsRetryable(lastErr) {
			return lastErr
		}

		wait := time.Duration(attempt) * policy.Backoff
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return newAPIError(CodeNetwork, "request canceled", false, ctx.Err())
		case <-timer.C:
		}
	}

	return lastErr
}
