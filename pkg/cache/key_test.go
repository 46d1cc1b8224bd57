package cache

import (
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "stock key",
			key:  StockKey(123456),
			want: "marketsync:cache:stock:123456",
		},
		{
			name: "resource with stray separators",
			key:  CacheKey{Resource: ":stock:", ID: 1},
			want: "marketsync:cache:stock:1",
		},
		{
			name: "params are sorted",
			key: CacheKey{
				Resource: ResourceStock,
				ID:       42,
				Params:   map[string]string{"shop": "7", "region": "eu"},
			},
			want: "marketsync:cache:stock:42:region=eu:shop=7",
		},
		{
			name: "no resource",
			key:  CacheKey{ID: 9},
			want: "marketsync:cache:9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Resource: ResourceStock,
		ID:       1,
		Params:   map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"},
	}

	first := key.String()
	for i := 0; i < 50; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() = %q on iteration %d, want %q", got, i, first)
		}
	}
}
