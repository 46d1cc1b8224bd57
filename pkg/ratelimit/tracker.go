package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketsync_rate_limit_remaining",
		Help: "Last X-RateLimit-Remaining value reported by the marketplace",
	})

	rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketsync_rate_limit_cooldowns_total",
		Help: "Total number of cooldown windows opened by 429 responses",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketsync_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a shared cooldown to pass",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Tracker shares marketplace rate-limit state between clients through Redis.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// GetState retrieves the current state. Missing keys yield a healthy default.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	state := &RateLimitState{Remaining: -1}

	cooldownMs, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	switch {
	case err == nil:
		state.CooldownUntil = time.UnixMilli(cooldownMs)
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("get cooldown: %w", err)
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	switch {
	case err == nil:
		state.Remaining = remaining
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	lastMs, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	switch {
	case err == nil:
		state.LastUpdate = time.UnixMilli(lastMs)
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state.UpdateHealth(t.now())
	return state, nil
}

// UpdateFromResponse records the rate-limit headers of one upstream response.
// A 429 opens a cooldown window; other statuses only refresh the remaining budget.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	now := t.now()
	pipe := t.redis.Pipeline()
	touched := false

	if remainStr := headers.Get("X-RateLimit-Remaining"); remainStr != "" {
		if remain, err := strconv.Atoi(remainStr); err != nil {
			t.logger.Warn().Err(err).Str("value", remainStr).Msg("Ignoring malformed X-RateLimit-Remaining header")
		} else {
			pipe.Set(ctx, RedisKeyRemaining, remain, 0)
			rateLimitRemaining.Set(float64(remain))
			touched = true
		}
	}

	if statusCode == http.StatusTooManyRequests {
		wait := CooldownFromHeaders(headers, now)
		until := now.Add(wait)
		// the key expires with the window so a crashed writer cannot block forever
		pipe.Set(ctx, RedisKeyCooldownUntil, until.UnixMilli(), wait)
		rateLimitCooldownsTotal.Inc()
		touched = true

		t.logger.Warn().
			Dur("cooldown", wait).
			Time("cooldown_until", until).
			Msg("Marketplace rate limit hit, cooldown opened")
	}

	if !touched {
		return nil
	}

	pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// Wait blocks until no shared cooldown is active. Redis failures fail open.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Rate limit state unavailable, proceeding")
		return nil
	}

	wait := state.TimeUntilReady(t.now())
	if wait <= 0 {
		return nil
	}
	if wait > MaxCooldown {
		wait = MaxCooldown
	}

	t.logger.Debug().Dur("wait", wait).Msg("Waiting for shared cooldown")
	rateLimitWaitSeconds.Observe(wait.Seconds())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// ok is false when the header is absent or unparsable.
func RetryAfter(headers http.Header, now time.Time) (d time.Duration, ok bool) {
	ra := headers.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(ra); err == nil {
		return at.Sub(now), true
	}
	return 0, false
}

// CooldownFromHeaders derives the wait requested by a 429 response.
// Retry-After wins over X-RateLimit-Reset (seconds).
func CooldownFromHeaders(headers http.Header, now time.Time) time.Duration {
	wait := DefaultCooldown

	if d, ok := RetryAfter(headers, now); ok {
		wait = d
	} else if headers.Get("Retry-After") == "" {
		if secs, err := strconv.Atoi(headers.Get("X-RateLimit-Reset")); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		}
	}

	if wait <= 0 {
		wait = DefaultCooldown
	}
	if wait > MaxCooldown {
		wait = MaxCooldown
	}
	return wait
}
