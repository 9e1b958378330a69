package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahilarora/merakart-backend/pkg/enums"
)

// Shipment is one courier booking for a seller group within an order.
// A failed shipment is superseded by a fresh row on retry rather than reused.
type Shipment struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	SellerID       uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	ProviderID     uuid.UUID            `gorm:"column:provider_id;type:uuid;not null" json:"provider_id"`
	Status         enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	CourierCode    string               `gorm:"column:courier_code;type:text;not null" json:"courier_code"`
	CourierName    string               `gorm:"column:courier_name;type:text" json:"courier_name"`
	TrackingNumber *string              `gorm:"column:tracking_number;type:text" json:"tracking_number,omitempty"`
	TrackingURL    *string              `gorm:"column:tracking_url;type:text" json:"tracking_url,omitempty"`
	LabelURL       *string              `gorm:"column:label_url;type:text" json:"label_url,omitempty"`
	ExternalID     *string              `gorm:"column:external_id;type:text" json:"external_id,omitempty"`
	WeightKG       decimal.Decimal      `gorm:"column:weight_kg;type:numeric(8,3);not null" json:"weight_kg"`
	Cost           decimal.Decimal      `gorm:"column:cost;type:numeric(12,2);not null;default:0" json:"cost"`
	FailureReason  *string              `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`
	BookedAt       *time.Time           `gorm:"column:booked_at" json:"booked_at,omitempty"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
