package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/marketplace-sync/internal/config"
	"github.com/Sternrassler/marketplace-sync/internal/service"
	"github.com/Sternrassler/marketplace-sync/pkg/cache"
	"github.com/Sternrassler/marketplace-sync/pkg/client"
	"github.com/Sternrassler/marketplace-sync/pkg/enrichment"
	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/Sternrassler/marketplace-sync/pkg/marketplace"
	"github.com/Sternrassler/marketplace-sync/pkg/pagination"
	"github.com/Sternrassler/marketplace-sync/pkg/ratelimit"
	"github.com/Sternrassler/marketplace-sync/pkg/reconcile"
	"github.com/Sternrassler/marketplace-sync/pkg/store"
	"github.com/cockroachdb/pebble"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	ordersKey   = "orders"
	productsKey = "products"
)

// app holds the wired service and the resources it must release.
type app struct {
	svc    *service.Service
	redis  *redis.Client
	pebble *pebble.DB
}

// newApp wires config into a running service. Redis is optional; when configured
// it must be reachable.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	if err := a.wire(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config) error {
	clientCfg := client.Config{
		BaseURL:           cfg.Marketplace.BaseURL,
		Token:             cfg.Marketplace.Token,
		UserAgent:         cfg.Marketplace.UserAgent,
		Timeout:           cfg.Marketplace.Timeout,
		RequestsPerSecond: cfg.Rate.RequestsPerSecond,
		Burst:             cfg.Rate.Burst,
		Retry:             client.DefaultRetryConfig(),
	}
	clientCfg.Retry.MaxAttempts = cfg.Retry.MaxAttempts
	clientCfg.Retry.InitialBackoff = cfg.Retry.InitialBackoff
	clientCfg.Retry.MaxBackoff = cfg.Retry.MaxBackoff

	var stockCache *cache.Manager
	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

		clientCfg.Gate = ratelimit.NewTracker(a.redis, logging.NewLogger(logging.ComponentRateLimit))
		if cfg.Enrichment.CacheTTL > 0 {
			stockCache = cache.NewManager(a.redis, cfg.Enrichment.CacheTTL)
		}
	}

	httpClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("failed to create marketplace client: %w", err)
	}
	remote := marketplace.NewAPI(httpClient, cfg.Marketplace.ShopIDs, cfg.Marketplace.PageSize)

	history := pagination.NewHistoryFetcher(remote, pagination.Config{
		MaxPages:    cfg.Marketplace.MaxPages,
		PageTimeout: cfg.Marketplace.PageTimeout,
	})

	orders, products, err := a.openStores(cfg.Store)
	if err != nil {
		return err
	}

	job := enrichment.NewJob(cache.NewStockLookup(remote, stockCache), products, enrichment.Config{
		Concurrency:   cfg.Enrichment.Concurrency,
		LookupTimeout: cfg.Enrichment.LookupTimeout,
	})

	a.svc = service.New(history, job, orders, products, service.Config{
		HistoryStart: cfg.Marketplace.HistoryStart,
	})
	return nil
}

func (a *app) openStores(cfg config.StoreConfig) (*store.Store[reconcile.MergedOrder], *store.Store[enrichment.Product], error) {
	codec, err := store.CodecByName(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	var ordersBackend, productsBackend store.Backend
	switch cfg.Backend {
	case "pebble":
		db, err := store.OpenPebble(cfg.PebbleDir)
		if err != nil {
			return nil, nil, err
		}
		a.pebble = db
		ordersBackend = store.NewPebbleBackend(db, ordersKey)
		productsBackend = store.NewPebbleBackend(db, productsKey)
	default:
		ordersBackend = store.NewFileBackend(cfg.OrdersPath)
		productsBackend = store.NewFileBackend(cfg.ProductsPath)
	}

	return store.New[reconcile.MergedOrder](ordersKey, ordersBackend, codec),
		store.New[enrichment.Product](productsKey, productsBackend, codec),
		nil
}

// Close releases Redis and Pebble.
func (a *app) Close() error {
	var errs []error
	if a.pebble != nil {
		errs = append(errs, a.pebble.Close())
		a.pebble = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	return errors.Join(errs...)
}
