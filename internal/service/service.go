// Package service runs the two sync paths of marketplace-sync and the operator's
// purchase price update on top of the shared client and datasets.
//
// RefreshOrders: history fetch, merge with the stored orders, write.
// SyncStock: read the stored products, enrich, write the changed ones.
//
// The paths share nothing but the datasets and may run concurrently.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/marketplace-sync/pkg/enrichment"
	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/Sternrassler/marketplace-sync/pkg/marketplace"
	"github.com/Sternrassler/marketplace-sync/pkg/metrics"
	"github.com/Sternrassler/marketplace-sync/pkg/pagination"
	"github.com/Sternrassler/marketplace-sync/pkg/reconcile"
	"github.com/Sternrassler/marketplace-sync/pkg/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrOrderNotFound is returned when no stored order has the given id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidPrice is returned for negative purchase prices.
	ErrInvalidPrice = errors.New("purchase price must not be negative")
)

// HistoryFetcher is implemented by *pagination.HistoryFetcher.
type HistoryFetcher interface {
	FetchAllWithStats(ctx context.Context, from, to time.Time) ([]marketplace.Order, pagination.Stats)
}

// StockEnricher is implemented by *enrichment.Job.
type StockEnricher interface {
	Sync(ctx context.Context, products []enrichment.Product) (*enrichment.Result, error)
}

// Config holds service configuration
type Config struct {
	// HistoryStart is the lower date bound of a full refresh.
	HistoryStart time.Time
}

// Service wires the sync paths together.
type Service struct {
	history  HistoryFetcher
	enricher StockEnricher
	orders   store.Gateway[reconcile.MergedOrder]
	products store.Gateway[enrichment.Product]
	config   Config
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a new service.
func New(
	history HistoryFetcher,
	enricher StockEnricher,
	orders store.Gateway[reconcile.MergedOrder],
	products store.Gateway[enrichment.Product],
	config Config,
) *Service {
	return &Service{
		history:  history,
		enricher: enricher,
		orders:   orders,
		products: products,
		config:   config,
		now:      time.Now,
		logger:   logging.NewLogger(logging.ComponentSync),
	}
}

// RefreshResult is the outcome of a full order refresh.
type RefreshResult struct {
	RunID    string                  `json:"runId"`
	Count    int                     `json:"count"`
	Orders   []reconcile.MergedOrder `json:"orders"`
	Complete bool                    `json:"complete"`
	Dropped  []int64                 `json:"dropped,omitempty"`
	Stats    pagination.Stats        `json:"-"`
}

// RefreshOrders fetches the full order history, merges it with the stored orders
// and writes the result. A partial history is still merged and written, except
// when nothing at all was retrieved.
func (s *Service) RefreshOrders(ctx context.Context) (*RefreshResult, error) {
	start := time.Now()
	res := &RefreshResult{RunID: uuid.NewString()}
	logger := s.logger.With().Str("run_id", res.RunID).Str("path", metrics.PathOrders).Logger()

	remote, stats := s.history.FetchAllWithStats(ctx, s.config.HistoryStart, s.now())
	res.Stats = stats
	res.Complete = stats.StopReason == pagination.StopCompleted

	err := s.orders.Update(ctx, func(prior []reconcile.MergedOrder) ([]reconcile.MergedOrder, error) {
		if !res.Complete && len(remote) == 0 {
			res.Orders = prior
			return nil, store.ErrSkipWrite
		}

		res.Dropped = reconcile.Dropped(remote, prior)
		res.Orders = reconcile.Merge(remote, prior)
		return res.Orders, nil
	})
	metrics.SyncDuration.WithLabelValues(metrics.PathOrders).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncRuns.WithLabelValues(metrics.PathOrders, "error").Inc()
		logger.Error().Err(err).Msg("Order refresh failed")
		return nil, fmt.Errorf("refresh orders: %w", err)
	}

	res.Count = len(res.Orders)
	metrics.DatasetItems.WithLabelValues("orders").Set(float64(res.Count))

	if len(res.Dropped) > 0 {
		metrics.OrdersDropped.Add(float64(len(res.Dropped)))
		logger.Warn().
			Ints64("order_ids", res.Dropped).
			Int("dropped", len(res.Dropped)).
			Msg("Stored orders no longer reported by the marketplace were dropped")
	}

	result := "ok"
	if !res.Complete {
		result = "partial"
		logger.Warn().
			Str("stop_reason", stats.StopReason).
			Int("pages", stats.Pages).
			Int("total_pages", stats.TotalPages).
			Msg("Order history incomplete")
	} else {
		metrics.LastSuccess.WithLabelValues(metrics.PathOrders).SetToCurrentTime()
	}
	metrics.SyncRuns.WithLabelValues(metrics.PathOrders, result).Inc()

	logger.Info().
		Int("count", res.Count).
		Bool("complete", res.Complete).
		Dur("duration", time.Since(start)).
		Msg("Order refresh finished")
	return res, nil
}

// StockResult is the outcome of a stock sync.
type StockResult struct {
	RunID string `json:"runId"`
	*enrichment.Result
}

// SyncStock refreshes the stock of the stored products.
func (s *Service) SyncStock(ctx context.Context) (*StockResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Str("path", metrics.PathStock).Logger()

	products, err := s.products.Read(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues(metrics.PathStock, "error").Inc()
		return nil, fmt.Errorf("read products: %w", err)
	}

	res, err := s.enricher.Sync(ctx, products)
	metrics.SyncDuration.WithLabelValues(metrics.PathStock).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncRuns.WithLabelValues(metrics.PathStock, "error").Inc()
		logger.Error().Err(err).Msg("Stock sync failed")
		return nil, fmt.Errorf("sync stock: %w", err)
	}

	metrics.SyncRuns.WithLabelValues(metrics.PathStock, "ok").Inc()
	metrics.LastSuccess.WithLabelValues(metrics.PathStock).SetToCurrentTime()
	metrics.DatasetItems.WithLabelValues("products").Set(float64(len(products)))

	logger.Info().
		Int("updated", res.Updated).
		Int("failed", res.Failed).
		Dur("duration", time.Since(start)).
		Msg("Stock sync finished")
	return &StockResult{RunID: runID, Result: res}, nil
}

// UpdatePurchasePrice sets the operator-owned purchase price of an order. It is
// the only operation that changes an existing purchase price.
func (s *Service) UpdatePurchasePrice(ctx context.Context, orderID int64, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}

	err := s.orders.Update(ctx, func(items []reconcile.MergedOrder) ([]reconcile.MergedOrder, error) {
		if !reconcile.SetPurchasePrice(items, orderID, price) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return items, nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("order_id", orderID).Str("purchase_price", price.String()).Msg("Purchase price updated")
	return nil
}

// Orders returns the stored orders.
func (s *Service) Orders(ctx context.Context) ([]reconcile.MergedOrder, error) {
	return s.orders.Read(ctx)
}

// Products returns the stored products.
func (s *Service) Products(ctx context.Context) ([]enrichment.Product, error) {
	return s.products.Read(ctx)
}
