package client

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ShouldRetry determines if a request should be retried based on status code
func ShouldRetry(statusCode int) bool {
	// Retry on rate limits (429) and server errors (5xx)
	return statusCode == 429 || statusCode >= 500
}

// IsRetryable reports whether err is a transient failure: a timeout, a
// rate limit or a server error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	return ShouldRetry(StatusCodeOf(err))
}

// Retry runs op with exponential backoff until it succeeds, fails with a
// non-retryable error, or maxElapsed passes. The client itself never calls
// this; it is for callers whose operation is idempotent.
func Retry(ctx context.Context, maxElapsed time.Duration, op func() error) error {
	if maxElapsed <= 0 {
		return op()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 8 * time.Second
	bo.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
