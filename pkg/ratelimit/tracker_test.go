package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// unreachableRedis fails every command without retrying.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTracker_UpdateFromResponse_MalformedRemaining(t *testing.T) {
	tracker := NewTracker(unreachableRedis(t), zerolog.Nop())
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "not-a-number")

	t.Run("success response is ignored", func(t *testing.T) {
		if err := tracker.UpdateFromResponse(ctx, http.StatusOK, headers); err != nil {
			t.Errorf("UpdateFromResponse() error = %v, want nil", err)
		}
	})

	t.Run("429 still records the cooldown", func(t *testing.T) {
		err := tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers)
		// the cooldown reaches redis, which is down here
		if err == nil || !strings.Contains(err.Error(), "store rate limit state") {
			t.Errorf("UpdateFromResponse() error = %v, want redis store error", err)
		}
	})
}
