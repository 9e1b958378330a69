package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahilarora/merakart-backend/pkg/db/models"
)

// Repository persists payment orders and the order rows they settle.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindPaymentOrderByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error)
	FindPaymentOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)
	CreatePaymentOrder(ctx context.Context, po *models.PaymentOrder) (*models.PaymentOrder, error)
	UpdatePaymentOrder(ctx context.Context, po *models.PaymentOrder) error
	// MarkOrderPaidOnce sets paid_at and flips status exactly once; it reports
	// whether this call performed the transition.
	MarkOrderPaidOnce(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindPaymentOrderByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error) {
	var po models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) FindPaymentOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	var po models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) CreatePaymentOrder(ctx context.Context, po *models.PaymentOrder) (*models.PaymentOrder, error) {
	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		return nil, err
	}
	return po, nil
}

func (r *repository) UpdatePaymentOrder(ctx context.Context, po *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Save(po).Error
}

func (r *repository) MarkOrderPaidOnce(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET payment_status = 'paid',
		    status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
		    paid_at = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND paid_at IS NULL`, orderID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
