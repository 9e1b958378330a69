package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sahilarora/merakart-backend/pkg/config"
	"github.com/sahilarora/merakart-backend/pkg/db"
	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
	"github.com/sahilarora/merakart-backend/pkg/metrics"
	"github.com/sahilarora/merakart-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// gateway is the payment gateway surface the orchestrator needs.
type gateway interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// notificationEnqueuer queues an outbound message inside the caller's tx.
type notificationEnqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
}

// Service orchestrates gateway order creation and payment verification.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.PaymentOrder, error)
	VerifyPayment(ctx context.Context, input VerifyInput) (*VerifyResult, error)
	VerifyWebhook(ctx context.Context, signature string, rawBody []byte) (*VerifyResult, error)
}

// CreateOrderInput identifies the local order to register with the gateway.
type CreateOrderInput struct {
	OrderID uuid.UUID
}

// VerifyInput is the checkout callback payload.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// VerifyResult reports the verification outcome. Replays of an already
// verified payment set AlreadyVerified without re-mutating anything.
type VerifyResult struct {
	PaymentOrder    *models.PaymentOrder
	AlreadyVerified bool
}

type service struct {
	repo     Repository
	tx       txRunner
	gateway  gateway
	notifier notificationEnqueuer
	cfg      config.GatewayConfig
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

// NewService builds the payment orchestrator.
func NewService(repo Repository, tx txRunner, gw gateway, notifier notificationEnqueuer, cfg config.GatewayConfig, logg *logger.Logger, m *metrics.PaymentMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notification enqueuer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		gateway:  gw,
		notifier: notifier,
		cfg:      cfg,
		logg:     logg,
		metrics:  m,
	}, nil
}

// CreateOrder registers the local order with the gateway. Validation runs
// before any network call; an existing payment order short-circuits without
// contacting the gateway.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.PaymentOrder, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrderByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}

	if err := s.validateOrderForPayment(order); err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindPaymentOrderByOrderID(ctx, order.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	amountPaise := order.Total.Mul(decimal.NewFromInt(100)).IntPart()
	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amountPaise,
		Currency: order.Currency.String(),
		Receipt:  order.OrderNumber,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway order creation failed")
	}

	po := &models.PaymentOrder{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrder.ID,
		Status:         enums.PaymentStatusPending,
		Amount:         order.Total,
		AmountPaise:    amountPaise,
		Currency:       order.Currency,
		Receipt:        order.OrderNumber,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.WithTx(tx).CreatePaymentOrder(ctx, po)
		return err
	})
	if err != nil {
		// a concurrent checkout won the unique order_id race; return its row
		if db.IsUniqueViolation(err, "idx_payment_orders_order_id", "payment_orders.order_id") {
			return s.repo.FindPaymentOrderByOrderID(ctx, order.ID)
		}
		return nil, err
	}

	s.metrics.IncOrderCreated()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":         order.ID.String(),
		"gateway_order_id": po.GatewayOrderID,
	}), "payment order created")
	return po, nil
}

func (s *service) validateOrderForPayment(order *models.Order) error {
	if !order.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported currency %q", order.Currency))
	}
	if !order.Total.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	if s.cfg.AmountCeiling > 0 && order.Total.GreaterThan(decimal.NewFromInt(s.cfg.AmountCeiling)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total exceeds payment ceiling")
	}

	expected := order.Subtotal.Add(order.ShippingFee).Sub(order.Discount)
	if !order.Total.Equal(expected) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order totals are inconsistent").
			WithDetails(map[string]string{
				"total":    order.Total.String(),
				"expected": expected.String(),
			})
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	return nil
}

// VerifyPayment recomputes the callback signature and settles the payment
// exactly once. Replays of a verified payment return the recorded state.
func (s *service) VerifyPayment(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"gateway order id, payment id and signature are all required")
	}

	if !s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		s.metrics.IncVerification("rejected")
		s.recordSignatureFailure(ctx, input)
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "payment signature mismatch")
	}

	result, err := s.settle(ctx, input.GatewayOrderID, input.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncVerification("ok")
	return result, nil
}

// recordSignatureFailure audit-logs the rejected callback and marks the
// payment order failed, but only while it is still unverified.
func (s *service) recordSignatureFailure(ctx context.Context, input VerifyInput) {
	auditCtx := s.logg.WithFields(ctx, map[string]any{
		"gateway_order_id":   input.GatewayOrderID,
		"gateway_payment_id": input.GatewayPaymentID,
	})
	s.logg.Warn(auditCtx, "rejected payment callback with invalid signature")

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		po, err := repo.FindPaymentOrderByGatewayOrderID(ctx, input.GatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if po.VerifiedAt != nil {
			return nil
		}
		reason := "signature verification failed"
		po.Status = enums.PaymentStatusFailed
		po.FailureReason = &reason
		return repo.UpdatePaymentOrder(ctx, po)
	})
	if err != nil {
		s.logg.Error(auditCtx, "recording signature failure", err)
	}
}

func (s *service) settle(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*VerifyResult, error) {
	var result VerifyResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		po, err := repo.FindPaymentOrderByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
			}
			return err
		}

		if po.VerifiedAt != nil {
			result = VerifyResult{PaymentOrder: po, AlreadyVerified: true}
			return nil
		}

		now := time.Now().UTC()
		po.Status = enums.PaymentStatusPaid
		po.GatewayPaymentID = &gatewayPaymentID
		po.VerifiedAt = &now
		po.FailureReason = nil
		if err := repo.UpdatePaymentOrder(ctx, po); err != nil {
			return err
		}

		firstTime, err := repo.MarkOrderPaidOnce(ctx, po.OrderID)
		if err != nil {
			return err
		}
		if firstTime {
			if err := s.enqueueConfirmation(ctx, tx, repo, po); err != nil {
				return err
			}
		}

		result = VerifyResult{PaymentOrder: po}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"gateway_order_id": gatewayOrderID,
		"replay":           result.AlreadyVerified,
	}), "payment verified")
	return &result, nil
}

func (s *service) enqueueConfirmation(ctx context.Context, tx *gorm.DB, repo Repository, po *models.PaymentOrder) error {
	order, err := repo.FindOrderByID(ctx, po.OrderID)
	if err != nil {
		return err
	}
	recipient := ""
	if order.ShippingAddress != nil {
		recipient = order.ShippingAddress.Phone
	}
	return s.notifier.Enqueue(ctx, tx, &models.Notification{
		Kind:      enums.NotificationKindOrderConfirmation,
		Status:    enums.NotificationStatusPending,
		UserID:    order.UserID,
		OrderID:   &order.ID,
		Recipient: recipient,
		Payload: map[string]any{
			"order_number": order.OrderNumber,
			"total":        order.Total.String(),
			"currency":     order.Currency.String(),
		},
	})
}

// webhookEnvelope is the subset of the gateway webhook body we act on.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifyWebhook authenticates the raw body before parsing it. A signature
// failure is reported distinctly from a malformed body.
func (s *service) VerifyWebhook(ctx context.Context, signature string, rawBody []byte) (*VerifyResult, error) {
	if !s.gateway.VerifyWebhookSignature(rawBody, signature) {
		s.metrics.IncWebhookSignature("rejected")
		s.logg.Warn(ctx, "rejected webhook with invalid signature")
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "webhook signature mismatch")
	}
	s.metrics.IncWebhookSignature("ok")

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}

	if envelope.Event != "payment.captured" {
		s.logg.Info(s.logg.WithField(ctx, "event", envelope.Event), "ignoring webhook event")
		return &VerifyResult{}, nil
	}

	entity := envelope.Payload.Payment.Entity
	if entity.OrderID == "" || entity.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payment entity incomplete")
	}
	return s.settle(ctx, entity.OrderID, entity.ID)
}
