package cache

import (
	"context"
	"errors"

	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/rs/zerolog"
)

// StockSource looks up the available quantity of a product upstream.
type StockSource interface {
	ProductStock(ctx context.Context, productID int64) (int, error)
}

// StockLookup is a StockSource that consults the cache first.
type StockLookup struct {
	source  StockSource
	manager *Manager
	logger  zerolog.Logger
}

// NewStockLookup wraps source with manager. A nil manager disables caching.
func NewStockLookup(source StockSource, manager *Manager) *StockLookup {
	return &StockLookup{
		source:  source,
		manager: manager,
		logger:  logging.NewLogger(logging.ComponentEnrichment).With().Str("layer", "cache").Logger(),
	}
}

// ProductStock returns a cached quantity younger than the TTL, else asks the source
// and caches a successful answer. Failed lookups are never cached.
func (l *StockLookup) ProductStock(ctx context.Context, productID int64) (int, error) {
	if l.manager == nil {
		return l.source.ProductStock(ctx, productID)
	}

	key := StockKey(productID)
	entry, err := l.manager.Get(ctx, key)
	switch {
	case err == nil:
		l.logger.Debug().Int64("product_id", productID).Int("quantity", entry.Quantity).Msg("Stock cache hit")
		return entry.Quantity, nil
	case !errors.Is(err, ErrCacheMiss):
		l.logger.Warn().Err(err).Int64("product_id", productID).Msg("Stock cache unavailable, asking marketplace")
	}

	qty, err := l.source.ProductStock(ctx, productID)
	if err != nil {
		return 0, err
	}

	if err := l.manager.Set(ctx, key, qty); err != nil {
		l.logger.Warn().Err(err).Int64("product_id", productID).Msg("Failed to cache stock lookup")
	}
	return qty, nil
}
