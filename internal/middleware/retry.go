// Package middleware provides the bounded retry wrapper the booking
// services put around their transactions. Only transient failures
// (aborted commits) are retried; domain errors surface immediately.
package middleware

import (
	"context"
	"math"
	"time"

	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// RetryPolicy defines the retry strategy
type RetryPolicy struct {
	MaxAttempts       int           // Maximum number of attempts
	InitialBackoff    time.Duration // Initial backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration
	BackoffMultiplier float64       // Exponential backoff multiplier
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Retry runs op, re-attempting it on transient failures (aborted
// transactions from lock contention). op must be idempotent: it is the
// whole logical operation including its transaction, so a retry
// re-runs it from a clean slate. Domain errors are surfaced on the
// first attempt.
func Retry(ctx context.Context, logger *observability.Logger, policy RetryPolicy, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !errors.IsTransient(err) {
			return err
		}

		lastErr = err

		if attempt < policy.MaxAttempts {
			backoff := calculateBackoff(attempt-1, policy)
			logger.WithError(err).Logger.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying after aborted transaction")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

// calculateBackoff calculates exponential backoff
func calculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	backoff := float64(policy.InitialBackoff.Milliseconds()) *
		math.Pow(policy.BackoffMultiplier, float64(attempt))

	maxMs := float64(policy.MaxBackoff.Milliseconds())
	if backoff > maxMs {
		backoff = maxMs
	}

	return time.Duration(backoff) * time.Millisecond
}
