package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is a priced line captured at checkout. Seller attribution drives
// per-seller shipment grouping during fulfillment.
type OrderItem struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	SellerID  uuid.UUID        `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Name      string           `gorm:"column:name;type:text;not null" json:"name"`
	Thumbnail *string          `gorm:"column:thumbnail;type:text" json:"thumbnail,omitempty"`
	UnitPrice decimal.Decimal  `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	SalePrice *decimal.Decimal `gorm:"column:sale_price;type:numeric(12,2)" json:"sale_price,omitempty"`
	Quantity  int              `gorm:"column:quantity;not null" json:"quantity"`
	Size      *string          `gorm:"column:size;type:text" json:"size,omitempty"`
	Color     *string          `gorm:"column:color;type:text" json:"color,omitempty"`
	WeightKG  *decimal.Decimal `gorm:"column:weight_kg;type:numeric(8,3)" json:"weight_kg,omitempty"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// EffectivePrice returns the sale price when set, otherwise the unit price.
func (i OrderItem) EffectivePrice() decimal.Decimal {
	if i.SalePrice != nil {
		return *i.SalePrice
	}
	return i.UnitPrice
}

// LineTotal is the effective price multiplied by quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.EffectivePrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}
