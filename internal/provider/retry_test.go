package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&ProviderError{Code: ErrCodeRateLimit}))
	assert.True(t, Retryable(&ProviderError{Code: ErrCodeProviderUnavailable}))
	assert.True(t, Retryable(&ProviderError{Code: ErrCodeTimeout}))
	assert.True(t, Retryable(errors.New("connection reset by peer")))

	assert.False(t, Retryable(&ProviderError{Code: ErrCodeAuthentication}))
	assert.False(t, Retryable(&ProviderError{Code: ErrCodeInvalidRequest}))
	assert.False(t, Retryable(&ProviderError{Code: ErrCodeContextLength}))
	assert.False(t, Retryable(&ProviderError{Code: ErrCodeContentFilter}))
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	out, err := WithRetry(context.Background(), fastRetryConfig(3), nil, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &ProviderError{Code: ErrCodeProviderUnavailable}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), fastRetryConfig(5), nil, func() (string, error) {
		calls++
		return "", &ProviderError{Code: ErrCodeAuthentication}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), fastRetryConfig(2), nil, func() (string, error) {
		calls++
		return "", &ProviderError{Code: ErrCodeTimeout}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "first call + two retries")
}

func TestWithRetry_PartialConfigFallsBackToDefaults(t *testing.T) {
	// Only MaxRetries and InitialInterval set: Multiplier and MaxInterval
	// must default instead of collapsing the backoff interval to zero.
	cfg := RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond}

	calls := 0
	require.NotPanics(t, func() {
		_, _ = WithRetry(context.Background(), cfg, nil, func() (string, error) {
			calls++
			return "", &ProviderError{Code: ErrCodeTimeout}
		})
	})
	assert.Equal(t, 3, calls, "first call + two retries")
}

func TestWithRetry_ZeroRetriesCallsOnce(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), RetryConfig{}, nil, func() (string, error) {
		calls++
		return "", &ProviderError{Code: ErrCodeTimeout}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
		Multiplier:      2.0,
	}

	done := make(chan error, 1)
	go func() {
		_, err := WithRetry(ctx, cfg, nil, func() (string, error) {
			return "", &ProviderError{Code: ErrCodeTimeout}
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestWithRetry_RateLimitArmsGate(t *testing.T) {
	gate := NewGate(2)
	calls := 0
	_, err := WithRetry(context.Background(), fastRetryConfig(1), gate, func() (string, error) {
		calls++
		if calls == 1 {
			return "", &ProviderError{Code: ErrCodeRateLimit, RetryAfter: 50 * time.Millisecond}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_TransientRetryWaitsOutCooldown(t *testing.T) {
	gate := NewGate(2)
	calls := 0

	start := time.Now()
	_, err := WithRetry(context.Background(), fastRetryConfig(1), gate, func() (string, error) {
		calls++
		if calls == 1 {
			// Another worker's rate limit arms the shared cooldown while
			// this one fails with a plain server error.
			gate.ArmCooldown(60 * time.Millisecond)
			return "", &ProviderError{Code: ErrCodeProviderUnavailable}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond,
		"retry of a non-rate-limit error must still respect the shared cooldown")
}

func TestGate_ArmCooldownKeepsLatestDeadline(t *testing.T) {
	g := NewGate(1)
	g.ArmCooldown(100 * time.Millisecond)
	assert.True(t, g.CoolingDown())

	// A shorter arm never shortens the active cooldown.
	g.ArmCooldown(time.Millisecond)
	assert.True(t, g.CoolingDown())

	require.NoError(t, g.WaitCooldown(context.Background()))
	assert.False(t, g.CoolingDown())
}

func TestGate_WaitCooldownBlocksUntilExpiry(t *testing.T) {
	g := NewGate(1)
	g.ArmCooldown(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, g.WaitCooldown(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestGate_WaitCooldownHonorsContext(t *testing.T) {
	g := NewGate(1)
	g.ArmCooldown(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.WaitCooldown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_BoundsConcurrency(t *testing.T) {
	g := NewGate(2)
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx))
	require.NoError(t, g.Acquire(ctx))

	// Third acquire must block until a slot frees up.
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Acquire(blocked), context.DeadlineExceeded)

	g.Release()
	require.NoError(t, g.Acquire(ctx))
}

func TestPermanent(t *testing.T) {
	assert.False(t, Permanent(nil))
	assert.False(t, Permanent(context.Canceled))
	assert.False(t, Permanent(context.DeadlineExceeded))
	assert.False(t, Permanent(&ProviderError{Code: ErrCodeRateLimit}))
	assert.True(t, Permanent(&ProviderError{Code: ErrCodeAuthentication}))
	assert.True(t, Permanent(&ProviderError{Code: ErrCodeInvalidRequest}))
}
