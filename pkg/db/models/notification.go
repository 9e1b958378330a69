package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sahilarora/merakart-backend/pkg/enums"
	"github.com/sahilarora/merakart-backend/pkg/types"
)

// Notification is a queued outbound message. Rows are claimed by the worker
// in creation order and retried until MaxAttempts is exhausted.
type Notification struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind        enums.NotificationKind   `gorm:"column:kind;type:text;not null"`
	Status      enums.NotificationStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	UserID      uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	OrderID     *uuid.UUID               `gorm:"column:order_id;type:uuid;index"`
	Recipient   string                   `gorm:"column:recipient;type:text;not null"`
	Payload     types.JSONMap            `gorm:"column:payload;type:jsonb;serializer:json"`
	Attempts    int                      `gorm:"column:attempts;not null;default:0"`
	LastError   *string                  `gorm:"column:last_error;type:text"`
	NextRetryAt *time.Time               `gorm:"column:next_retry_at"`
	SentAt      *time.Time               `gorm:"column:sent_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
