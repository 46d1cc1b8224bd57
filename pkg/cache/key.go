package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "marketsync:cache"

// Resources cached by this package.
const (
	ResourceStock = "stock"
)

// CacheKey identifies one cached lookup.
type CacheKey struct {
	// Resource is the kind of lookup (e.g. ResourceStock)
	Resource string

	// ID is the upstream entity id
	ID int64

	// Params narrow the lookup further (e.g. {"shop": "7"})
	Params map[string]string
}

// StockKey returns the key of a product stock lookup.
func StockKey(productID int64) CacheKey {
	return CacheKey{Resource: ResourceStock, ID: productID}
}

// String generates a deterministic cache key string.
// Format: marketsync:cache:resource:id:param1=val1:param2=val2
//
// Example:
//
//	marketsync:cache:stock:123456
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if r := strings.Trim(k.Resource, ":"); r != "" {
		parts = append(parts, r)
	}
	parts = append(parts, strconv.FormatInt(k.ID, 10))

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params[key]))
		}
	}

	return strings.Join(parts, ":")
}
