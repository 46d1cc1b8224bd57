// Package api exposes the sync paths over HTTP.
package api

import (
	"context"
	"time"

	"github.com/Sternrassler/marketplace-sync/internal/service"
	"github.com/Sternrassler/marketplace-sync/pkg/enrichment"
	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/Sternrassler/marketplace-sync/pkg/metrics"
	"github.com/Sternrassler/marketplace-sync/pkg/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Syncer is implemented by *service.Service.
type Syncer interface {
	RefreshOrders(ctx context.Context) (*service.RefreshResult, error)
	SyncStock(ctx context.Context) (*service.StockResult, error)
	UpdatePurchasePrice(ctx context.Context, orderID int64, price decimal.Decimal) error
	Orders(ctx context.Context) ([]reconcile.MergedOrder, error)
	Products(ctx context.Context) ([]enrichment.Product, error)
}

// NewRouter builds the gin engine with all routes.
func NewRouter(svc Syncer) *gin.Engine {
	logger := logging.NewLogger(logging.ComponentAPI)
	h := &Handler{svc: svc, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/sync/orders", h.RefreshOrders)
		api.POST("/sync/stock", h.SyncStock)
		api.GET("/orders", h.ListOrders)
		api.PUT("/orders/:orderId/purchase-price", h.UpdatePurchasePrice)
		api.GET("/products", h.ListProducts)
	}
	return r
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
