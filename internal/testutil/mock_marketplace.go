// Package testutil provides a configurable mock marketplace for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/marketplace-sync/pkg/marketplace"
)

// MockResponse overrides the response of one page or product.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	// Times limits the override to the first N matching requests (0 = always).
	Times int
}

// MockMarketplace is an httptest server speaking the marketplace seller API.
type MockMarketplace struct {
	server *httptest.Server

	mu            sync.Mutex
	pages         [][]marketplace.Order
	totalPages    *int
	pageOverrides map[int]*MockResponse
	stock         map[int64][]marketplace.Sku
	stockOverride map[int64]*MockResponse
	delay         time.Duration

	// Tracking
	requestCount  int
	pageRequests  []int
	stockRequests map[int64]int
	lastQuery     map[string][]string
	lastHeader    http.Header
	inFlight      int
	maxInFlight   int
}

// NewMockMarketplace starts a mock marketplace.
func NewMockMarketplace() *MockMarketplace {
	m := &MockMarketplace{
		pageOverrides: make(map[int]*MockResponse),
		stock:         make(map[int64][]marketplace.Sku),
		stockOverride: make(map[int64]*MockResponse),
		stockRequests: make(map[int64]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server URL.
func (m *MockMarketplace) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockMarketplace) Close() {
	m.server.Close()
}

// SetOrderPages configures the order pages; totalPages is reported as len(pages).
func (m *MockMarketplace) SetOrderPages(pages ...[]marketplace.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = pages
}

// SetTotalPages overrides the declared total page count.
func (m *MockMarketplace) SetTotalPages(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalPages = &n
}

// SetPageResponse overrides the response for one page index.
func (m *MockMarketplace) SetPageResponse(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageOverrides[page] = &resp
}

// SetProductStock configures the SKUs of a product.
func (m *MockMarketplace) SetProductStock(productID int64, quantities ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	skus := make([]marketplace.Sku, len(quantities))
	for i, q := range quantities {
		skus[i] = marketplace.Sku{SkuID: productID*100 + int64(i), QuantityAvailable: q}
	}
	m.stock[productID] = skus
}

// SetProductResponse overrides the response for one product.
func (m *MockMarketplace) SetProductResponse(productID int64, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockOverride[productID] = &resp
}

// SetDelay makes every request sleep before answering.
func (m *MockMarketplace) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// RequestCount returns the number of requests served.
func (m *MockMarketplace) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// PageRequests returns the requested page indexes in arrival order.
func (m *MockMarketplace) PageRequests() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.pageRequests...)
}

// StockRequests returns how often a product was looked up.
func (m *MockMarketplace) StockRequests(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stockRequests[productID]
}

// LastQuery returns the query of the most recent request.
func (m *MockMarketplace) LastQuery() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// LastHeader returns the headers of the most recent request.
func (m *MockMarketplace) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockMarketplace) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func (m *MockMarketplace) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.lastQuery = r.URL.Query()
	m.lastHeader = r.Header.Clone()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	switch {
	case r.URL.Path == marketplace.OrdersPath:
		m.handleOrders(w, r)
	case strings.HasPrefix(r.URL.Path, marketplace.ProductPath+"/"):
		m.handleProduct(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockMarketplace) handleOrders(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		http.Error(w, "bad page", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.pageRequests = append(m.pageRequests, page)
	override := consume(m.pageOverrides, page)
	total := len(m.pages)
	if m.totalPages != nil {
		total = *m.totalPages
	}
	var items []marketplace.Order
	if page < len(m.pages) {
		items = m.pages[page]
	}
	m.mu.Unlock()

	if override != nil {
		writeOverride(w, override)
		return
	}
	if items == nil {
		items = []marketplace.Order{}
	}
	writeJSON(w, marketplace.OrdersPage{Items: items, TotalPages: total})
}

func (m *MockMarketplace) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, marketplace.ProductPath+"/"), 10, 64)
	if err != nil {
		http.Error(w, "bad product id", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.stockRequests[id]++
	override := consume(m.stockOverride, id)
	skus, ok := m.stock[id]
	m.mu.Unlock()

	if override != nil {
		writeOverride(w, override)
		return
	}
	if !ok {
		http.Error(w, `{"error":"product not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, marketplace.ProductInfo{ProductID: id, SkuList: skus})
}

// consume returns the override for key and decrements its remaining uses.
func consume[K comparable](overrides map[K]*MockResponse, key K) *MockResponse {
	o, ok := overrides[key]
	if !ok {
		return nil
	}
	if o.Times > 0 {
		o.Times--
		if o.Times == 0 {
			delete(overrides, key)
		}
	}
	return o
}

func writeOverride(w http.ResponseWriter, o *MockResponse) {
	for k, v := range o.Headers {
		w.Header().Set(k, v)
	}
	status := o.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if o.Body != "" {
		w.Write([]byte(o.Body))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
