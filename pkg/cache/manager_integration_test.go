//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

func TestManager_Integration_SetAndGet(t *testing.T) {
	manager := NewManager(setupRedis(t), time.Minute)
	ctx := context.Background()
	key := StockKey(123)

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty cache error = %v, want ErrCacheMiss", err)
	}

	if err := manager.Set(ctx, key, 17); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	entry, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Quantity != 17 {
		t.Errorf("Quantity = %d, want 17", entry.Quantity)
	}

	ttl, err := manager.redis.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("redis TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestManager_Integration_Expired(t *testing.T) {
	manager := NewManager(setupRedis(t), time.Minute)
	ctx := context.Background()
	key := StockKey(5)

	if err := manager.Set(ctx, key, 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	manager.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss for stale entry", err)
	}
}

func TestManager_Integration_InvalidEntry(t *testing.T) {
	client := setupRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()
	key := StockKey(8)

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("redis set: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestStockLookup_Integration_CachesSuccess(t *testing.T) {
	source := newCountingSource(map[int64]int{42: 9})
	lookup := NewStockLookup(source, NewManager(setupRedis(t), time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		qty, err := lookup.ProductStock(ctx, 42)
		if err != nil {
			t.Fatalf("ProductStock() error = %v", err)
		}
		if qty != 9 {
			t.Errorf("ProductStock() = %d, want 9", qty)
		}
	}
	if got := source.Calls(42); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
}

func TestStockLookup_Integration_DoesNotCacheFailures(t *testing.T) {
	source := newCountingSource(map[int64]int{42: 9})
	source.err = errors.New("upstream down")
	lookup := NewStockLookup(source, NewManager(setupRedis(t), time.Minute))
	ctx := context.Background()

	if _, err := lookup.ProductStock(ctx, 42); err == nil {
		t.Fatal("ProductStock() expected error")
	}

	source.err = nil
	qty, err := lookup.ProductStock(ctx, 42)
	if err != nil {
		t.Fatalf("ProductStock() error = %v", err)
	}
	if qty != 9 {
		t.Errorf("ProductStock() = %d, want 9", qty)
	}
	if got := source.Calls(42); got != 2 {
		t.Errorf("source calls = %d, want 2", got)
	}
}
