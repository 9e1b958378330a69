package types

import "github.com/shopspring/decimal"

// CartItem is the ephemeral checkout line item supplied by the storefront.
// It is owned by the cart session and never persisted by this service.
type CartItem struct {
	ID        string           `json:"id"`
	ProductID string           `json:"product_id"`
	Name      string           `json:"name"`
	Thumbnail string           `json:"thumbnail,omitempty"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	Quantity  int              `json:"quantity"`
	Size      string           `json:"size,omitempty"`
	Color     string           `json:"color,omitempty"`
	WeightKG  *decimal.Decimal `json:"weight_kg,omitempty"`
}

// EffectivePrice returns the sale price when set, otherwise the list price.
func (c CartItem) EffectivePrice() decimal.Decimal {
	if c.SalePrice != nil {
		return *c.SalePrice
	}
	return c.Price
}
