package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for rate-limit retries.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps every delay, Retry-After included.
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor between consecutive delays.
	BackoffMultiplier float64

	// Jitter is the +/- fraction applied to each delay (0.2 = ±20%).
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = 0
	}
	return c
}

// backoff returns the delay after the given failed attempt (1-based), before jitter.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffMultiplier
		if d >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	return time.Duration(d)
}

// attemptFunc performs one attempt. retry=true with a non-nil error schedules another
// attempt; hint is a server-requested minimum delay (0 when none).
type attemptFunc func(attempt int) (retry bool, hint time.Duration, err error)

// retryWithBackoff runs fn until it succeeds, returns a non-retryable error, or runs
// out of attempts. Delays grow exponentially and respect context cancellation.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn attemptFunc) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		retry, hint, err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !retry {
			return err
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		delay := cfg.backoff(attempt)
		if cfg.Jitter > 0 {
			delay = time.Duration(float64(delay) * (1 - cfg.Jitter + rand.Float64()*2*cfg.Jitter))
		}
		if hint > delay {
			delay = hint
		}
		if delay > cfg.MaxBackoff {
			delay = cfg.MaxBackoff
		}

		retriesTotal.Inc()
		retryBackoffSeconds.Observe(delay.Seconds())

		logger.Warn().
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Rate limited, retrying after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().Int("attempt", attempt).Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	retryExhaustedTotal.Inc()
	logger.Error().
		Int("max_attempts", cfg.MaxAttempts).
		Err(lastErr).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
