// Package reconcile merges freshly fetched marketplace orders with the persisted
// dataset without losing locally-owned fields.
//
// The purchase price of an order is owned by the operator. Once persisted it survives
// every routine sync; it changes only through SetPurchasePrice. Orders that are no
// longer reported by the marketplace are dropped from the merged output; Dropped
// reports them so callers can make the drop visible.
//
// All functions in this package are pure and perform no I/O.
package reconcile

import (
	"github.com/Sternrassler/marketplace-sync/pkg/marketplace"
	"github.com/shopspring/decimal"
)

// MergedOrder is the persisted, flattened form of an order line.
type MergedOrder struct {
	ID           int64           `json:"id" yaml:"id"`
	OrderID      int64           `json:"orderId" yaml:"orderId"`
	Status       string          `json:"status" yaml:"status"`
	Date         int64           `json:"date" yaml:"date"`
	ProductID    int64           `json:"productId" yaml:"productId"`
	Title        string          `json:"productTitle" yaml:"productTitle"`
	SkuTitle     string          `json:"skuTitle" yaml:"skuTitle"`
	Amount       int             `json:"amount" yaml:"amount"`
	SellPrice    decimal.Decimal `json:"sellPrice" yaml:"sellPrice"`
	Commission   decimal.Decimal `json:"commission" yaml:"commission"`
	SellerProfit decimal.Decimal `json:"sellerProfit" yaml:"sellerProfit"`
	Image        string          `json:"image" yaml:"image"`

	// PurchasePrice is locally owned. PurchasePriceSet marks a value the operator
	// entered, so an explicit zero is kept like any other price.
	PurchasePrice    decimal.Decimal `json:"purchasePrice" yaml:"purchasePrice"`
	PurchasePriceSet bool            `json:"purchasePriceSet,omitempty" yaml:"purchasePriceSet,omitempty"`
}

// OverrideMap maps an order id to its persisted purchase price.
type OverrideMap map[int64]decimal.Decimal

// BuildOverrides captures the purchase prices of the prior dataset: every price the
// operator set, zero included, and every non-zero persisted price. An unmarked zero
// is the cold-start default and is not captured.
func BuildOverrides(prior []MergedOrder) OverrideMap {
	overrides := make(OverrideMap, len(prior))
	for _, o := range prior {
		if !o.PurchasePriceSet && o.PurchasePrice.IsZero() {
			continue
		}
		overrides[o.OrderID] = o.PurchasePrice
	}
	return overrides
}

// FlattenImage collapses the image descriptor to one URL: the medium variant, else
// the low variant, else "".
func FlattenImage(img *marketplace.Image) string {
	if img == nil || img.Photo == nil {
		return ""
	}
	if m := img.Photo.Medium; m != nil && m.High != "" {
		return m.High
	}
	if l := img.Photo.Low; l != nil && l.High != "" {
		return l.High
	}
	return ""
}

// Merge builds the merged dataset from the remote orders, in remote order. The
// purchase price is taken from the prior dataset when present, else from the remote
// declaration, else zero. Prior orders absent from remote are not carried forward.
func Merge(remote []marketplace.Order, prior []MergedOrder) []MergedOrder {
	overrides := BuildOverrides(prior)

	merged := make([]MergedOrder, 0, len(remote))
	for _, r := range remote {
		merged = append(merged, mergeOne(r, overrides))
	}
	return merged
}

func mergeOne(r marketplace.Order, overrides OverrideMap) MergedOrder {
	m := MergedOrder{
		ID:           r.ID,
		OrderID:      r.OrderID,
		Status:       r.Status,
		Date:         r.Date,
		ProductID:    r.ProductID,
		Title:        r.Title,
		SkuTitle:     r.SkuTitle,
		Amount:       r.Amount,
		SellPrice:    r.SellPrice,
		Commission:   r.Commission,
		SellerProfit: r.SellerProfit,
		Image:        FlattenImage(r.Image),
	}

	switch price, ok := overrides[r.OrderID]; {
	case ok:
		m.PurchasePrice = price
		m.PurchasePriceSet = true
	case r.PurchasePrice.Valid:
		m.PurchasePrice = r.PurchasePrice.Decimal
	default:
		m.PurchasePrice = decimal.Zero
	}
	return m
}

// Dropped returns the order ids of prior that Merge would drop, in prior order.
func Dropped(remote []marketplace.Order, prior []MergedOrder) []int64 {
	present := make(map[int64]struct{}, len(remote))
	for _, r := range remote {
		present[r.OrderID] = struct{}{}
	}

	var dropped []int64
	seen := make(map[int64]struct{})
	for _, p := range prior {
		if _, ok := present[p.OrderID]; ok {
			continue
		}
		if _, ok := seen[p.OrderID]; ok {
			continue
		}
		seen[p.OrderID] = struct{}{}
		dropped = append(dropped, p.OrderID)
	}
	return dropped
}

// SetPurchasePrice sets the purchase price of every line of orderID in place and
// marks it as operator-set. It reports whether any line matched.
func SetPurchasePrice(items []MergedOrder, orderID int64, price decimal.Decimal) bool {
	found := false
	for i := range items {
		if items[i].OrderID == orderID {
			items[i].PurchasePrice = price
			items[i].PurchasePriceSet = true
			found = true
		}
	}
	return found
}
