package notifications

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
)

// Repository persists queued notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	// PendingBatch returns pending rows whose retry cutoff has passed, oldest
	// first.
	PendingBatch(ctx context.Context, limit int, now time.Time) ([]models.Notification, error)
	Update(ctx context.Context, notification *models.Notification) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) PendingBatch(ctx context.Context, limit int, now time.Time) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.NotificationStatusPending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Save(notification).Error
}
