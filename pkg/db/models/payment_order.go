package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahilarora/merakart-backend/pkg/enums"
)

// PaymentOrder correlates an internal order with a gateway order. The unique
// order_id index makes create-order idempotent per internal order.
type PaymentOrder struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_payment_orders_order_id" json:"order_id"`
	GatewayOrderID   string              `gorm:"column:gateway_order_id;type:text;not null;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id;type:text" json:"gateway_payment_id,omitempty"`
	Status           enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	AmountPaise      int64               `gorm:"column:amount_paise;not null" json:"amount_paise"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'" json:"currency"`
	Receipt          string              `gorm:"column:receipt;type:text;not null" json:"receipt"`
	FailureReason    *string             `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`
	VerifiedAt       *time.Time          `gorm:"column:verified_at" json:"verified_at,omitempty"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
