package providers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahilarora/merakart-backend/pkg/db/models"
)

// Repository persists shipping provider accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListEnabled(ctx context.Context) ([]models.ShippingProvider, error)
	ListAll(ctx context.Context) ([]models.ShippingProvider, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ShippingProvider, error)
	FindActiveByCode(ctx context.Context, code string) (*models.ShippingProvider, error)
	Create(ctx context.Context, provider *models.ShippingProvider) (*models.ShippingProvider, error)
	Update(ctx context.Context, provider *models.ShippingProvider) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a provider repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListEnabled(ctx context.Context) ([]models.ShippingProvider, error) {
	var providers []models.ShippingProvider
	err := r.db.WithContext(ctx).
		Where("active = ? AND disconnected_at IS NULL", true).
		Order("priority DESC, created_at ASC").
		Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.ShippingProvider, error) {
	var providers []models.ShippingProvider
	err := r.db.WithContext(ctx).
		Order("priority DESC, created_at ASC").
		Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ShippingProvider, error) {
	var provider models.ShippingProvider
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&provider).Error
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *repository) FindActiveByCode(ctx context.Context, code string) (*models.ShippingProvider, error) {
	var provider models.ShippingProvider
	err := r.db.WithContext(ctx).
		Where("code = ? AND disconnected_at IS NULL", code).
		First(&provider).Error
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *repository) Create(ctx context.Context, provider *models.ShippingProvider) (*models.ShippingProvider, error) {
	if err := r.db.WithContext(ctx).Create(provider).Error; err != nil {
		return nil, err
	}
	return provider, nil
}

func (r *repository) Update(ctx context.Context, provider *models.ShippingProvider) error {
	return r.db.WithContext(ctx).Save(provider).Error
}
