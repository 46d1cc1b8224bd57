package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/marketplace-sync/internal/service"
	"github.com/Sternrassler/marketplace-sync/pkg/enrichment"
	"github.com/Sternrassler/marketplace-sync/pkg/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) RefreshOrders(ctx context.Context) (*service.RefreshResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RefreshResult), args.Error(1)
}

func (m *MockSyncer) SyncStock(ctx context.Context) (*service.StockResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StockResult), args.Error(1)
}

func (m *MockSyncer) UpdatePurchasePrice(ctx context.Context, orderID int64, price decimal.Decimal) error {
	args := m.Called(ctx, orderID, price)
	return args.Error(0)
}

func (m *MockSyncer) Orders(ctx context.Context) ([]reconcile.MergedOrder, error) {
	args := m.Called(ctx)
	return args.Get(0).([]reconcile.MergedOrder), args.Error(1)
}

func (m *MockSyncer) Products(ctx context.Context) ([]enrichment.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]enrichment.Product), args.Error(1)
}

func setupTestRouter(svc *MockSyncer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(svc)
}

func perform(r http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func TestHandler_Health(t *testing.T) {
	router := setupTestRouter(new(MockSyncer))

	w, response := perform(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", response["status"])
}

func TestHandler_Metrics(t *testing.T) {
	router := setupTestRouter(new(MockSyncer))

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marketsync_orders_dropped_total")
}

func TestHandler_RefreshOrders(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockSyncer)
		router := setupTestRouter(svc)

		orders := []reconcile.MergedOrder{
			{OrderID: 10, Status: "CREATED", PurchasePrice: decimal.NewFromInt(5000)},
		}
		svc.On("RefreshOrders", mock.Anything).Return(&service.RefreshResult{
			RunID:    "run-1",
			Count:    1,
			Orders:   orders,
			Complete: true,
			Dropped:  []int64{20},
		}, nil)

		w, response := perform(router, http.MethodPost, "/api/sync/orders", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, response["success"].(bool))
		assert.Equal(t, float64(1), response["count"])
		assert.Equal(t, true, response["complete"])
		assert.Equal(t, "run-1", response["runId"])
		assert.Equal(t, []any{float64(20)}, response["dropped"])

		items := response["orders"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "5000", items[0].(map[string]any)["purchasePrice"])
		svc.AssertExpectations(t)
	})

	t.Run("failure", func(t *testing.T) {
		svc := new(MockSyncer)
		router := setupTestRouter(svc)
		svc.On("RefreshOrders", mock.Anything).Return(nil, errors.New("disk full"))

		w, response := perform(router, http.MethodPost, "/api/sync/orders", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.False(t, response["success"].(bool))
		assert.Contains(t, response["error"], "disk full")
	})
}

func TestHandler_SyncStock(t *testing.T) {
	svc := new(MockSyncer)
	router := setupTestRouter(svc)

	svc.On("SyncStock", mock.Anything).Return(&service.StockResult{
		RunID: "run-2",
		Result: &enrichment.Result{
			Outcomes: []enrichment.Outcome{
				{ProductID: "a", Status: enrichment.StatusUpdated, Previous: 1, Quantity: 5},
				{ProductID: "b", Status: enrichment.StatusFailed, Reason: "timeout"},
				{ProductID: "c", Status: enrichment.StatusSkipped},
			},
			Eligible: 2,
			Updated:  1,
			Skipped:  1,
			Failed:   1,
		},
	}, nil)

	w, response := perform(router, http.MethodPost, "/api/sync/stock", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response["success"].(bool))
	assert.Equal(t, float64(1), response["updatedCount"])
	assert.Equal(t, "run-2", response["runId"])

	summary := response["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["eligible"])
	assert.Equal(t, float64(1), summary["failed"])

	failures := response["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].(map[string]any)["productId"])
	assert.Equal(t, "timeout", failures[0].(map[string]any)["reason"])
}

func TestHandler_UpdatePurchasePrice(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		setup      func(svc *MockSyncer)
		wantStatus int
	}{
		{
			name: "number body",
			path: "/api/orders/10/purchase-price",
			body: `{"purchasePrice": 5000}`,
			setup: func(svc *MockSyncer) {
				svc.On("UpdatePurchasePrice", mock.Anything, int64(10), mock.MatchedBy(func(d decimal.Decimal) bool {
					return d.Equal(decimal.NewFromInt(5000))
				})).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "string body",
			path: "/api/orders/10/purchase-price",
			body: `{"purchasePrice": "12.50"}`,
			setup: func(svc *MockSyncer) {
				svc.On("UpdatePurchasePrice", mock.Anything, int64(10), mock.MatchedBy(func(d decimal.Decimal) bool {
					return d.Equal(decimal.RequireFromString("12.5"))
				})).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "unknown order",
			path: "/api/orders/99/purchase-price",
			body: `{"purchasePrice": 1}`,
			setup: func(svc *MockSyncer) {
				svc.On("UpdatePurchasePrice", mock.Anything, int64(99), mock.Anything).
					Return(fmt.Errorf("%w: 99", service.ErrOrderNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "negative price",
			path: "/api/orders/10/purchase-price",
			body: `{"purchasePrice": -1}`,
			setup: func(svc *MockSyncer) {
				svc.On("UpdatePurchasePrice", mock.Anything, int64(10), mock.Anything).Return(service.ErrInvalidPrice)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid order id",
			path:       "/api/orders/abc/purchase-price",
			body:       `{"purchasePrice": 1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing price",
			path:       "/api/orders/10/purchase-price",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			path:       "/api/orders/10/purchase-price",
			body:       `{"purchasePrice":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			path: "/api/orders/10/purchase-price",
			body: `{"purchasePrice": 1}`,
			setup: func(svc *MockSyncer) {
				svc.On("UpdatePurchasePrice", mock.Anything, int64(10), mock.Anything).Return(errors.New("read-only file system"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSyncer)
			if tt.setup != nil {
				tt.setup(svc)
			}
			router := setupTestRouter(svc)

			w, response := perform(router, http.MethodPut, tt.path, []byte(tt.body))

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantStatus == http.StatusOK, response["success"])
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_ListOrders(t *testing.T) {
	svc := new(MockSyncer)
	router := setupTestRouter(svc)
	svc.On("Orders", mock.Anything).Return([]reconcile.MergedOrder{{OrderID: 1}, {OrderID: 2}}, nil)

	w, response := perform(router, http.MethodGet, "/api/orders", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), response["count"])
}

func TestHandler_ListProducts(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockSyncer)
		router := setupTestRouter(svc)
		svc.On("Products", mock.Anything).Return([]enrichment.Product{{ID: "a", Quantity: 3}}, nil)

		w, response := perform(router, http.MethodGet, "/api/products", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), response["count"])
		assert.True(t, strings.Contains(w.Body.String(), `"quantity":3`))
	})

	t.Run("failure", func(t *testing.T) {
		svc := new(MockSyncer)
		router := setupTestRouter(svc)
		svc.On("Products", mock.Anything).Return([]enrichment.Product(nil), errors.New("boom"))

		w, _ := perform(router, http.MethodGet, "/api/products", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
