package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/pkg/errors"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), observability.NewNopLogger(), fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), observability.NewNopLogger(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.TransactionAborted("database is locked", nil)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_DomainErrorsSurfaceImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), observability.NewNopLogger(), fastPolicy(3), func(context.Context) error {
		calls++
		return errors.SlotUnavailable("no units on 2026-09-11")
	})
	assert.True(t, errors.Is(err, errors.KindSlotUnavailable))
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), observability.NewNopLogger(), fastPolicy(3), func(context.Context) error {
		calls++
		return errors.TransactionAborted("database is locked", nil)
	})
	assert.True(t, errors.Is(err, errors.KindTransactionAborted))
	assert.Equal(t, 3, calls)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, observability.NewNopLogger(), fastPolicy(5), func(context.Context) error {
		return errors.TransactionAborted("database is locked", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff_CapsAtMax(t *testing.T) {
	p := RetryPolicy{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        300 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, p))
	assert.Equal(t, 200*time.Millisecond, calculateBackoff(1, p))
	assert.Equal(t, 300*time.Millisecond, calculateBackoff(2, p))
	assert.Equal(t, 300*time.Millisecond, calculateBackoff(5, p))
}
