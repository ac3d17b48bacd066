package provider

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ---------------------------------------------------------------------------
// Retry helper
// ---------------------------------------------------------------------------

// Retryable returns true if the error is worth retrying (rate limits, server
// errors, timeouts). Authentication and invalid-request errors are not
// retryable; neither is a prompt that exceeds the model's context window,
// since resending it cannot help.
func Retryable(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		// Non-provider errors (network issues) are retried.
		return true
	}
	switch pe.Code {
	case ErrCodeRateLimit, ErrCodeProviderUnavailable, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// WithRetry wraps a function call with exponential backoff + jitter. If cfg
// has MaxRetries == 0 the function is called exactly once; any other unset
// field falls back to its DefaultRetryConfig value, so a partially filled
// config is safe. When gate is non-nil, a rate-limit error arms the gate's
// shared cooldown, and every retry waits out the active cooldown before its
// next attempt, so one throttled worker pauses the whole fan-out.
//
// Usage:
//
//	resp, err := provider.WithRetry(ctx, cfg, gate, func() (*CompletionResponse, error) {
//	    return p.doRequest(ctx, req)
//	})
func WithRetry[T any](ctx context.Context, cfg RetryConfig, gate *Gate, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxRetries + 1 // first call + retries
	interval := cfg.InitialInterval
	if interval <= 0 {
		interval = DefaultRetryConfig().InitialInterval
	}
	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = DefaultRetryConfig().MaxInterval
	}
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = DefaultRetryConfig().Multiplier
	}

	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Do not retry non-retryable errors.
		if !Retryable(err) {
			return zero, err
		}

		// Do not sleep after the last attempt.
		if i == attempts-1 {
			break
		}

		// Exponential backoff with jitter (full jitter strategy).
		jitter := time.Duration(rand.Int63n(int64(interval)))
		sleep := interval/2 + jitter

		var pe *ProviderError
		if gate != nil && errors.As(err, &pe) && pe.Code == ErrCodeRateLimit {
			cooldown := sleep
			if pe.RetryAfter > cooldown {
				cooldown = pe.RetryAfter
			}
			gate.ArmCooldown(cooldown)
			if err := gate.WaitCooldown(ctx); err != nil {
				return zero, err
			}
		} else {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(sleep):
			}
			// Another worker may have hit a rate limit meanwhile; its
			// cooldown applies to this attempt too.
			if gate != nil {
				if err := gate.WaitCooldown(ctx); err != nil {
					return zero, err
				}
			}
		}

		// Grow interval for next round.
		interval = time.Duration(
			math.Min(
				float64(maxInterval),
				float64(interval)*multiplier,
			),
		)
	}

	return zero, lastErr
}
