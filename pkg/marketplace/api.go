package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Endpoint paths relative to the API base URL.
const (
	OrdersPath  = "/v1/finance/orders"
	ProductPath = "/v1/product"
)

// DefaultPageSize is the page length requested from the orders endpoint.
const DefaultPageSize = 50

// maxResponseSize bounds a decoded response body (10MB).
const maxResponseSize = 10 * 1024 * 1024

// ErrInvalidResponse wraps malformed response bodies.
var ErrInvalidResponse = errors.New("marketplace: invalid response")

// Getter is the subset of *client.Client the API needs.
type Getter interface {
	Get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error)
}

// API is the typed marketplace API.
type API struct {
	client   Getter
	shopIDs  []int64
	pageSize int
}

// NewAPI creates a typed API for the given shops.
func NewAPI(client Getter, shopIDs []int64, pageSize int) *API {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &API{
		client:   client,
		shopIDs:  shopIDs,
		pageSize: pageSize,
	}
}

// FetchPage fetches one zero-based page of orders dated within [from, to].
func (a *API) FetchPage(ctx context.Context, from, to time.Time, page int) ([]Order, int, error) {
	q := url.Values{}
	for _, id := range a.shopIDs {
		q.Add("shopIds", strconv.FormatInt(id, 10))
	}
	q.Set("dateFrom", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("dateTo", strconv.FormatInt(to.UnixMilli(), 10))
	q.Set("size", strconv.Itoa(a.pageSize))
	q.Set("page", strconv.Itoa(page))

	var out OrdersPage
	if err := a.getJSON(ctx, OrdersPath, q, &out); err != nil {
		return nil, 0, fmt.Errorf("orders page %d: %w", page, err)
	}
	return out.Items, out.TotalPages, nil
}

// ProductStock returns the available quantity of a product summed over its SKUs.
func (a *API) ProductStock(ctx context.Context, productID int64) (int, error) {
	var out ProductInfo
	endpoint := ProductPath + "/" + strconv.FormatInt(productID, 10)
	if err := a.getJSON(ctx, endpoint, nil, &out); err != nil {
		return 0, fmt.Errorf("product %d: %w", productID, err)
	}
	return out.TotalAvailable(), nil
}

func (a *API) getJSON(ctx context.Context, endpoint string, q url.Values, out any) error {
	resp, err := a.client.Get(ctx, endpoint, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
