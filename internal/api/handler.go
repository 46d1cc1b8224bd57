package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Sternrassler/marketplace-sync/internal/service"
	"github.com/Sternrassler/marketplace-sync/pkg/enrichment"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler serves the sync endpoints.
type Handler struct {
	svc    Syncer
	logger zerolog.Logger
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StockSummary aggregates the per-product outcomes of a stock sync.
type StockSummary struct {
	Eligible  int `json:"eligible"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// StockResponse is the body of POST /api/sync/stock.
type StockResponse struct {
	Success      bool                 `json:"success"`
	UpdatedCount int                  `json:"updatedCount"`
	RunID        string               `json:"runId"`
	Summary      StockSummary         `json:"summary"`
	Failures     []enrichment.Outcome `json:"failures,omitempty"`
}

// PurchasePriceRequest is the body of PUT /api/orders/:orderId/purchase-price.
type PurchasePriceRequest struct {
	PurchasePrice *decimal.Decimal `json:"purchasePrice" binding:"required"`
}

func (h *Handler) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, ErrorResponse{Success: false, Error: err.Error()})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RefreshOrders runs a full order refresh.
func (h *Handler) RefreshOrders(c *gin.Context) {
	res, err := h.svc.RefreshOrders(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    res.Count,
		"orders":   res.Orders,
		"complete": res.Complete,
		"runId":    res.RunID,
		"dropped":  res.Dropped,
	})
}

// SyncStock runs a stock enrichment.
func (h *Handler) SyncStock(c *gin.Context) {
	res, err := h.svc.SyncStock(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, StockResponse{
		Success:      true,
		UpdatedCount: res.Updated,
		RunID:        res.RunID,
		Summary: StockSummary{
			Eligible:  res.Eligible,
			Updated:   res.Updated,
			Unchanged: res.Unchanged,
			Skipped:   res.Skipped,
			Failed:    res.Failed,
		},
		Failures: res.Failures(),
	})
}

// UpdatePurchasePrice sets the purchase price of an order.
func (h *Handler) UpdatePurchasePrice(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		h.fail(c, http.StatusBadRequest, errors.New("invalid order id"))
		return
	}

	var req PurchasePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	err = h.svc.UpdatePurchasePrice(c.Request.Context(), orderID, *req.PurchasePrice)
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		h.fail(c, http.StatusNotFound, err)
		return
	case errors.Is(err, service.ErrInvalidPrice):
		h.fail(c, http.StatusBadRequest, err)
		return
	case err != nil:
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"orderId":       orderID,
		"purchasePrice": req.PurchasePrice,
	})
}

// ListOrders returns the stored orders.
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.svc.Orders(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(orders), "orders": orders})
}

// ListProducts returns the stored products.
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.svc.Products(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(products), "products": products})
}
