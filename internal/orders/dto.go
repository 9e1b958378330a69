package orders

import (
	"github.com/google/uuid"

	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	"github.com/sahilarora/merakart-backend/pkg/pagination"
)

// TransitionInput moves an order along the status graph.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	ActorID uuid.UUID
}

// FulfillInput books shipments for every unfulfilled seller group.
type FulfillInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// SellerOutcome is the per-seller fulfillment result.
type SellerOutcome struct {
	SellerID       uuid.UUID            `json:"seller_id"`
	ShipmentID     uuid.UUID            `json:"shipment_id"`
	Status         enums.ShipmentStatus `json:"status"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	CourierName    string               `json:"courier_name,omitempty"`
	Skipped        bool                 `json:"skipped"`
	Error          string               `json:"error,omitempty"`
}

// FulfillResult aggregates per-seller outcomes. The order is observable as
// partially fulfilled until a retry succeeds for every group.
type FulfillResult struct {
	OrderID  uuid.UUID       `json:"order_id"`
	Outcomes []SellerOutcome `json:"outcomes"`
}

// Fulfilled reports whether every seller group owns a non-failed shipment.
func (r FulfillResult) Fulfilled() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Status == enums.ShipmentStatusFailed {
			return false
		}
	}
	return len(r.Outcomes) > 0
}

// ListInput pages a user's orders newest first.
type ListInput struct {
	UserID uuid.UUID
	Page   pagination.Params
}

// ListResult carries one page and the cursor for the next.
type ListResult struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
