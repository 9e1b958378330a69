package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sahilarora/merakart-backend/pkg/enums"
)

// ShippingProvider is a connected courier aggregator account. Credentials
// are stored encrypted; plaintext never touches the database.
type ShippingProvider struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code                 string               `gorm:"column:code;type:text;not null;uniqueIndex:idx_providers_code_active,where:disconnected_at IS NULL" json:"code"`
	Name                 string               `gorm:"column:name;type:text;not null" json:"name"`
	CredentialType       enums.CredentialType `gorm:"column:credential_type;type:text;not null" json:"credential_type"`
	EncryptedCredentials string               `gorm:"column:encrypted_credentials;type:text;not null" json:"-"`
	Priority             int                  `gorm:"column:priority;not null;default:100" json:"priority"`
	Active               bool                 `gorm:"column:active;not null;default:true" json:"active"`
	LastValidatedAt      *time.Time           `gorm:"column:last_validated_at" json:"last_validated_at,omitempty"`
	DisconnectedAt       *time.Time           `gorm:"column:disconnected_at" json:"disconnected_at,omitempty"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
