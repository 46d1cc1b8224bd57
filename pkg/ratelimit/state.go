// Package ratelimit tracks the marketplace's rate-limit signals across sync runs.
// A 429 response opens a cooldown window (from Retry-After or X-RateLimit-Reset)
// that every client sharing the same Redis waits out before its next request.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyCooldownUntil = "marketsync:rate_limit:cooldown_until"
	RedisKeyRemaining     = "marketsync:rate_limit:remaining"
	RedisKeyLastUpdate    = "marketsync:rate_limit:last_update"
)

const (
	// DefaultCooldown applies when a 429 carries no usable Retry-After or reset header.
	DefaultCooldown = 1 * time.Second

	// MaxCooldown bounds any server-provided wait.
	MaxCooldown = 60 * time.Second

	// RemainingThresholdLow marks the state unhealthy before the upstream starts rejecting.
	RemainingThresholdLow = 5
)

// RateLimitState is the last observed upstream rate-limit state.
type RateLimitState struct {
	// CooldownUntil is zero when no cooldown is active.
	CooldownUntil time.Time `json:"cooldown_until"`

	// Remaining is the X-RateLimit-Remaining value, or -1 when the upstream never sent one.
	Remaining int `json:"remaining"`

	LastUpdate time.Time `json:"last_update"`

	IsHealthy bool `json:"is_healthy"`
}

// InCooldown reports whether requests must wait at time now.
func (s *RateLimitState) InCooldown(now time.Time) bool {
	return !s.CooldownUntil.IsZero() && now.Before(s.CooldownUntil)
}

// TimeUntilReady returns how long a caller must wait at time now. Returns 0 when ready.
func (s *RateLimitState) TimeUntilReady(now time.Time) time.Duration {
	if !s.InCooldown(now) {
		return 0
	}
	return s.CooldownUntil.Sub(now)
}

// IsStale returns true if the state is older than maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// UpdateHealth recomputes IsHealthy.
func (s *RateLimitState) UpdateHealth(now time.Time) {
	s.IsHealthy = !s.InCooldown(now) && (s.Remaining < 0 || s.Remaining >= RemainingThresholdLow)
}
