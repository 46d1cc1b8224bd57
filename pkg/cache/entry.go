package cache

import (
	"time"
)

// Entry is one cached lookup result.
type Entry struct {
	// Quantity is the observed value
	Quantity int `json:"quantity"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when the value was observed
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time until expiration, 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
