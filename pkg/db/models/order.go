package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahilarora/merakart-backend/pkg/enums"
	"github.com/sahilarora/merakart-backend/pkg/types"
)

// Order is the buyer-facing order produced by checkout. Line items are split
// per seller at fulfillment time; the order itself stays a single row.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	OrderNumber     string              `gorm:"column:order_number;type:text;not null;uniqueIndex" json:"order_number"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'" json:"payment_status"`
	Currency        enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'" json:"currency"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee     decimal.Decimal     `gorm:"column:shipping_fee;type:numeric(12,2);not null;default:0" json:"shipping_fee"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0" json:"discount"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	ShippingAddress *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json" json:"shipping_address,omitempty"`
	CourierCode     *string             `gorm:"column:courier_code;type:text" json:"courier_code,omitempty"`
	PaidAt          *time.Time          `gorm:"column:paid_at" json:"paid_at,omitempty"`
	ShippedAt       *time.Time          `gorm:"column:shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Shipments       []Shipment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"shipments,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
