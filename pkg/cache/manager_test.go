package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// countingSource counts upstream lookups.
type countingSource struct {
	mu    sync.Mutex
	calls map[int64]int
	stock map[int64]int
	err   error
}

func newCountingSource(stock map[int64]int) *countingSource {
	return &countingSource{calls: make(map[int64]int), stock: stock}
}

func (s *countingSource) ProductStock(ctx context.Context, productID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[productID]++
	if s.err != nil {
		return 0, s.err
	}
	return s.stock[productID], nil
}

func (s *countingSource) Calls(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[productID]
}

// unreachableRedis returns a client whose every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, time.Minute)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.TTL() != time.Minute {
		t.Errorf("TTL() = %v, want 1m", manager.TTL())
	}
}

func TestNewManager_DefaultTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if got := NewManager(client, 0).TTL(); got != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", got, DefaultTTL)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, time.Minute)
}

func TestManager_GetUnreachable(t *testing.T) {
	manager := NewManager(unreachableRedis(t), time.Minute)

	_, err := manager.Get(context.Background(), StockKey(1))
	if err == nil {
		t.Fatal("Get() expected error for unreachable redis")
	}
	if errors.Is(err, ErrCacheMiss) {
		t.Error("connection errors must not be reported as cache misses")
	}
}

func TestStockLookup_NilManagerPassesThrough(t *testing.T) {
	source := newCountingSource(map[int64]int{7: 3})
	lookup := NewStockLookup(source, nil)

	for i := 0; i < 2; i++ {
		qty, err := lookup.ProductStock(context.Background(), 7)
		if err != nil {
			t.Fatalf("ProductStock() error = %v", err)
		}
		if qty != 3 {
			t.Errorf("ProductStock() = %d, want 3", qty)
		}
	}
	if source.Calls(7) != 2 {
		t.Errorf("source calls = %d, want 2", source.Calls(7))
	}
}

func TestStockLookup_FailsOpen(t *testing.T) {
	source := newCountingSource(map[int64]int{7: 11})
	lookup := NewStockLookup(source, NewManager(unreachableRedis(t), time.Minute))

	qty, err := lookup.ProductStock(context.Background(), 7)
	if err != nil {
		t.Fatalf("ProductStock() error = %v, want redis failure to be absorbed", err)
	}
	if qty != 11 {
		t.Errorf("ProductStock() = %d, want 11", qty)
	}
}

func TestStockLookup_SourceErrorPropagates(t *testing.T) {
	source := newCountingSource(nil)
	source.err = errors.New("upstream down")
	lookup := NewStockLookup(source, NewManager(unreachableRedis(t), time.Minute))

	if _, err := lookup.ProductStock(context.Background(), 7); !errors.Is(err, source.err) {
		t.Errorf("ProductStock() error = %v, want %v", err, source.err)
	}
}
