package notifications

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
)

// Service enqueues outbound notifications. Dispatch is the worker's job; the
// enqueue path only writes a row inside the caller's transaction so a failed
// send can never roll back a payment.
type Service interface {
	Enqueue(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
}

type service struct {
	repo Repository
}

// NewService builds the notification service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Enqueue(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	if notification == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification required")
	}
	if notification.Kind == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification kind required")
	}
	if notification.Status == "" {
		notification.Status = enums.NotificationStatusPending
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	return repo.Create(ctx, notification)
}
