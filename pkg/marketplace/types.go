// Package marketplace holds the wire types of the marketplace seller API and a typed
// API on top of the rate-limited client.
package marketplace

import (
	"github.com/shopspring/decimal"
)

// Order is one order line as returned by the finance orders endpoint.
type Order struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"orderId"`
	Status    string `json:"status"`
	Date      int64  `json:"date"`
	ProductID int64  `json:"productId"`
	Title     string `json:"productTitle"`
	SkuTitle  string `json:"skuTitle"`
	Amount    int    `json:"amount"`

	SellPrice    decimal.Decimal `json:"sellPrice"`
	Commission   decimal.Decimal `json:"commission"`
	SellerProfit decimal.Decimal `json:"sellerProfit"`

	// PurchasePrice is only present when the seller declared it on the marketplace.
	PurchasePrice decimal.NullDecimal `json:"purchasePrice"`

	Image *Image `json:"productImage,omitempty"`
}

// Image is the nested product image descriptor.
type Image struct {
	Photo *PhotoSet `json:"photo,omitempty"`
}

// PhotoSet holds the resolution variants keyed by pixel width.
type PhotoSet struct {
	Medium *PhotoLink `json:"480,omitempty"`
	Low    *PhotoLink `json:"240,omitempty"`
}

// PhotoLink is a single image variant.
type PhotoLink struct {
	High string `json:"high"`
}

// OrdersPage is the paged orders response.
type OrdersPage struct {
	Items      []Order `json:"items"`
	TotalPages int     `json:"totalPages"`
}

// ProductInfo is the per-product response used for stock enrichment.
type ProductInfo struct {
	ProductID int64 `json:"productId"`
	SkuList   []Sku `json:"skuList"`
}

// Sku is one SKU of a product with its available quantity.
type Sku struct {
	SkuID             int64 `json:"skuId"`
	QuantityAvailable int   `json:"quantityAvailable"`
}

// TotalAvailable sums the available quantity over all SKUs.
func (p ProductInfo) TotalAvailable() int {
	total := 0
	for _, s := range p.SkuList {
		total += s.QuantityAvailable
	}
	return total
}
