package enrichment

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Channel is the sales channel a product is listed on.
type Channel string

const (
	ChannelDirect      Channel = "direct"
	ChannelMarketplace Channel = "marketplace"
	ChannelPartner     Channel = "partner"
	ChannelOther       Channel = "other"
)

// Product is one catalogue entry of the persisted products dataset.
type Product struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Channel    Channel         `json:"channel" yaml:"channel"`
	ExternalID string          `json:"externalId,omitempty" yaml:"externalId,omitempty"`
	Price      decimal.Decimal `json:"price" yaml:"price"`
	Quantity   int             `json:"quantity" yaml:"quantity"`
	InStock    bool            `json:"inStock" yaml:"inStock"`
}

// SetQuantity stores q and derives InStock from it.
func (p *Product) SetQuantity(q int) {
	p.Quantity = q
	p.InStock = q > 0
}

// MarketplaceID returns the upstream product id when the product is listed on the
// marketplace and carries a positive numeric external id.
func (p Product) MarketplaceID() (int64, bool) {
	if p.Channel != ChannelMarketplace {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(p.ExternalID), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
