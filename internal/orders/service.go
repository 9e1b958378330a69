package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sahilarora/merakart-backend/internal/shipping"
	"github.com/sahilarora/merakart-backend/pkg/config"
	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
	"github.com/sahilarora/merakart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// shipmentBooker supplies the provider account used to book shipments.
type shipmentBooker interface {
	PrimaryAdapter(ctx context.Context) (uuid.UUID, shipping.Adapter, error)
}

// Service owns the order status graph and per-seller fulfillment.
type Service interface {
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Fulfill(ctx context.Context, input FulfillInput) (*FulfillResult, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	booker  shipmentBooker
	cfg     config.ShippingConfig
	logg    *logger.Logger
}

// NewService builds the order service.
func NewService(repo Repository, tx txRunner, booker shipmentBooker, cfg config.ShippingConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if booker == nil {
		return nil, fmt.Errorf("shipment booker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		booker: booker,
		cfg:    cfg,
		logg:   logg,
	}, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Page.Limit)
	rows, err := s.repo.ListByUser(ctx, input.UserID, limit+1, cursor)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Orders: rows}
	if len(rows) > limit {
		result.Orders = rows[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

// Transition enforces the status graph and stamps lifecycle timestamps.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}

		if err := checkTransition(order.Status, input.Target); err != nil {
			return err
		}

		now := time.Now().UTC()
		order.Status = input.Target
		switch input.Target {
		case enums.OrderStatusShipped:
			order.ShippedAt = &now
		case enums.OrderStatusDelivered:
			order.DeliveredAt = &now
		case enums.OrderStatusCancelled:
			order.CancelledAt = &now
		}

		if err := repo.Update(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": updated.ID.String(),
		"status":   updated.Status.String(),
		"actor_id": input.ActorID.String(),
	}), "order status changed")
	return updated, nil
}

// Fulfill books one shipment per seller group. Groups that already own a
// non-failed shipment are skipped, which makes retries idempotent per seller;
// a failed booking marks its shipment failed and the loop continues.
func (s *service) Fulfill(ctx context.Context, input FulfillInput) (*FulfillResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if order.Status != enums.OrderStatusProcessing && order.Status != enums.OrderStatusPacked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be fulfilled", order.Status))
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no items")
	}

	providerID, adapter, err := s.booker.PrimaryAdapter(ctx)
	if err != nil {
		return nil, err
	}

	groups := groupItemsBySeller(order.Items)
	existing, err := s.repo.FindShipmentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	covered := coveredSellers(existing)

	defaultWeight := decimal.New(int64(s.cfg.DefaultItemWeightG), -3)
	if s.cfg.DefaultItemWeightG <= 0 {
		defaultWeight = decimal.RequireFromString("0.5")
	}

	result := &FulfillResult{OrderID: order.ID}
	var bookingErrs error
	for _, group := range groups {
		if prior, ok := covered[group.sellerID]; ok {
			result.Outcomes = append(result.Outcomes, SellerOutcome{
				SellerID:       group.sellerID,
				ShipmentID:     prior.ID,
				Status:         prior.Status,
				TrackingNumber: derefString(prior.TrackingNumber),
				CourierName:    prior.CourierName,
				Skipped:        true,
			})
			continue
		}

		outcome := s.bookSellerShipment(ctx, order, providerID, adapter, group, defaultWeight)
		if outcome.Error != "" {
			bookingErrs = multierr.Append(bookingErrs,
				fmt.Errorf("seller %s: %s", group.sellerID, outcome.Error))
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if bookingErrs != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()),
			"partial fulfillment failure: "+bookingErrs.Error())
	}
	return result, nil
}

type sellerGroup struct {
	sellerID uuid.UUID
	items    []models.OrderItem
}

// groupItemsBySeller partitions line items by seller, preserving the order in
// which sellers first appear.
func groupItemsBySeller(items []models.OrderItem) []sellerGroup {
	index := map[uuid.UUID]int{}
	groups := make([]sellerGroup, 0)
	for _, item := range items {
		pos, seen := index[item.SellerID]
		if !seen {
			pos = len(groups)
			index[item.SellerID] = pos
			groups = append(groups, sellerGroup{sellerID: item.SellerID})
		}
		groups[pos].items = append(groups[pos].items, item)
	}
	return groups
}

// coveredSellers maps sellers to their most recent non-failed shipment.
func coveredSellers(shipments []models.Shipment) map[uuid.UUID]models.Shipment {
	covered := map[uuid.UUID]models.Shipment{}
	for _, shipment := range shipments {
		if shipment.Status == enums.ShipmentStatusFailed {
			continue
		}
		covered[shipment.SellerID] = shipment
	}
	return covered
}

func (s *service) bookSellerShipment(ctx context.Context, order *models.Order, providerID uuid.UUID, adapter shipping.Adapter, group sellerGroup, defaultWeight decimal.Decimal) SellerOutcome {
	weight := decimal.Zero
	items := make([]shipping.ShipmentItem, 0, len(group.items))
	for _, item := range group.items {
		itemWeight := defaultWeight
		if item.WeightKG != nil && item.WeightKG.IsPositive() {
			itemWeight = *item.WeightKG
		}
		weight = weight.Add(itemWeight.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, shipping.ShipmentItem{
			Name:      item.Name,
			SKU:       item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.EffectivePrice(),
		})
	}
	weight = weight.Round(2)

	shipment := &models.Shipment{
		OrderID:     order.ID,
		SellerID:    group.sellerID,
		ProviderID:  providerID,
		Status:      enums.ShipmentStatusPending,
		CourierCode: derefString(order.CourierCode),
		WeightKG:    weight,
	}
	if _, err := s.repo.CreateShipment(ctx, shipment); err != nil {
		return SellerOutcome{SellerID: group.sellerID, Status: enums.ShipmentStatusFailed, Error: err.Error()}
	}

	params := shipping.CreateShipmentParams{
		OrderNumber: fmt.Sprintf("%s-%s", order.OrderNumber, shortSeller(group.sellerID)),
		CourierCode: derefString(order.CourierCode),
		WeightKG:    weight,
		Items:       items,
	}
	if order.ShippingAddress != nil {
		params.ToAddress = *order.ShippingAddress
	}

	booked, err := adapter.CreateShipment(ctx, params)
	now := time.Now().UTC()
	if err != nil {
		reason := err.Error()
		shipment.Status = enums.ShipmentStatusFailed
		shipment.FailureReason = &reason
		if updateErr := s.repo.UpdateShipment(ctx, shipment); updateErr != nil {
			s.logg.Error(ctx, "persisting failed shipment", updateErr)
		}
		return SellerOutcome{
			SellerID:   group.sellerID,
			ShipmentID: shipment.ID,
			Status:     enums.ShipmentStatusFailed,
			Error:      reason,
		}
	}

	shipment.Status = enums.ShipmentStatusCreated
	shipment.TrackingNumber = &booked.TrackingNumber
	shipment.ExternalID = &booked.ExternalID
	shipment.CourierCode = booked.CourierCode
	shipment.CourierName = booked.CourierName
	shipment.Cost = booked.Cost
	shipment.BookedAt = &now
	if booked.LabelURL != "" {
		shipment.LabelURL = &booked.LabelURL
	}
	if booked.TrackingURL != "" {
		shipment.TrackingURL = &booked.TrackingURL
	}
	if err := s.repo.UpdateShipment(ctx, shipment); err != nil {
		return SellerOutcome{
			SellerID:   group.sellerID,
			ShipmentID: shipment.ID,
			Status:     enums.ShipmentStatusFailed,
			Error:      err.Error(),
		}
	}

	return SellerOutcome{
		SellerID:       group.sellerID,
		ShipmentID:     shipment.ID,
		Status:         enums.ShipmentStatusCreated,
		TrackingNumber: booked.TrackingNumber,
		CourierName:    booked.CourierName,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// shortSeller derives a stable per-seller suffix for provider order numbers.
func shortSeller(sellerID uuid.UUID) string {
	return sellerID.String()[:8]
}
