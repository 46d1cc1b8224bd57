package marketplace_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/marketplace-sync/internal/testutil"
	"github.com/Sternrassler/marketplace-sync/pkg/client"
	"github.com/Sternrassler/marketplace-sync/pkg/marketplace"
	"github.com/shopspring/decimal"
)

func newAPI(t *testing.T, mock *testutil.MockMarketplace, shopIDs ...int64) *marketplace.API {
	t.Helper()
	cfg := client.DefaultConfig(mock.URL(), "secret-token")
	cfg.RequestsPerSecond = 0
	cfg.Retry = client.RetryConfig{MaxAttempts: 2, InitialBackoff: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return marketplace.NewAPI(c, shopIDs, 25)
}

func TestAPI_FetchPage(t *testing.T) {
	mock := testutil.NewMockMarketplace()
	defer mock.Close()

	mock.SetOrderPages(
		[]marketplace.Order{{ID: 1, OrderID: 10, ProductID: 100, SellPrice: decimal.RequireFromString("12.50")}},
		[]marketplace.Order{{ID: 2, OrderID: 20, ProductID: 200}},
	)

	api := newAPI(t, mock, 7, 9)
	from := time.UnixMilli(1_600_000_000_000)
	to := time.UnixMilli(1_700_000_000_000)

	items, total, err := api.FetchPage(context.Background(), from, to, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if total != 2 {
		t.Errorf("totalPages = %d, want 2", total)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("items = %+v, want the single order of page 0", items)
	}
	if !items[0].SellPrice.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("SellPrice = %s, want 12.5", items[0].SellPrice)
	}

	q := mock.LastQuery()
	checks := map[string][]string{
		"shopIds":  {"7", "9"},
		"dateFrom": {"1600000000000"},
		"dateTo":   {"1700000000000"},
		"size":     {"25"},
		"page":     {"0"},
	}
	for key, want := range checks {
		got := q[key]
		if len(got) != len(want) {
			t.Errorf("query %s = %v, want %v", key, got, want)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("query %s = %v, want %v", key, got, want)
			}
		}
	}

	if auth := mock.LastHeader().Get("Authorization"); auth != "secret-token" {
		t.Errorf("Authorization = %q, want the raw token", auth)
	}
}

func TestAPI_FetchPage_Error(t *testing.T) {
	mock := testutil.NewMockMarketplace()
	defer mock.Close()

	mock.SetPageResponse(0, testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: "boom"})

	api := newAPI(t, mock)
	_, _, err := api.FetchPage(context.Background(), time.Time{}, time.Now(), 0)
	if err == nil {
		t.Fatal("FetchPage() expected error for 500")
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %v, want APIError with status 500", err)
	}
}

func TestAPI_FetchPage_InvalidJSON(t *testing.T) {
	mock := testutil.NewMockMarketplace()
	defer mock.Close()

	mock.SetPageResponse(0, testutil.MockResponse{StatusCode: http.StatusOK, Body: "{not json"})

	api := newAPI(t, mock)
	_, _, err := api.FetchPage(context.Background(), time.Time{}, time.Now(), 0)
	if !errors.Is(err, marketplace.ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestAPI_ProductStock(t *testing.T) {
	mock := testutil.NewMockMarketplace()
	defer mock.Close()

	mock.SetProductStock(555, 3, 4, 0)

	api := newAPI(t, mock)
	qty, err := api.ProductStock(context.Background(), 555)
	if err != nil {
		t.Fatalf("ProductStock() error = %v", err)
	}
	if qty != 7 {
		t.Errorf("ProductStock() = %d, want 7", qty)
	}
	if mock.StockRequests(555) != 1 {
		t.Errorf("stock requests = %d, want 1", mock.StockRequests(555))
	}
}

func TestAPI_ProductStock_NotFound(t *testing.T) {
	mock := testutil.NewMockMarketplace()
	defer mock.Close()

	api := newAPI(t, mock)
	if _, err := api.ProductStock(context.Background(), 404); err == nil {
		t.Error("ProductStock() expected error for unknown product")
	}
}

func TestProductInfo_TotalAvailable(t *testing.T) {
	tests := []struct {
		name string
		skus []marketplace.Sku
		want int
	}{
		{"no skus", nil, 0},
		{"single", []marketplace.Sku{{QuantityAvailable: 5}}, 5},
		{"several", []marketplace.Sku{{QuantityAvailable: 2}, {QuantityAvailable: 0}, {QuantityAvailable: 9}}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := marketplace.ProductInfo{SkuList: tt.skus}
			if got := p.TotalAvailable(); got != tt.want {
				t.Errorf("TotalAvailable() = %d, want %d", got, tt.want)
			}
		})
	}
}
