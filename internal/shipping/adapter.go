package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sahilarora/merakart-backend/pkg/enums"
	"github.com/sahilarora/merakart-backend/pkg/types"
)

// ErrNotServiceable is returned by adapters when the lane cannot be served.
// The aggregator treats it as an empty result, not a failure.
var ErrNotServiceable = errors.New("route not serviceable")

// Credentials is the decrypted credential payload handed to adapter factories.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Rate is a single courier option quoted by a provider.
type Rate struct {
	ProviderCode  string          `json:"provider_code"`
	CourierCode   string          `json:"courier_code"`
	CourierName   string          `json:"courier_name"`
	Cost          decimal.Decimal `json:"cost"`
	Currency      enums.Currency  `json:"currency"`
	EstimatedDays int             `json:"estimated_days"`
	CODAvailable  bool            `json:"cod_available"`
}

// QuoteParams describes one lane to price.
type QuoteParams struct {
	FromPincode   string
	ToPincode     string
	WeightKG      decimal.Decimal
	COD           bool
	DeclaredValue decimal.Decimal
}

// ShipmentItem is one line handed to a provider when booking.
type ShipmentItem struct {
	Name      string
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateShipmentParams describes one seller-group booking.
type CreateShipmentParams struct {
	OrderNumber string
	CourierCode string
	WeightKG    decimal.Decimal
	COD         bool
	ToAddress   types.Address
	Items       []ShipmentItem
}

// ShipmentResult carries the provider's booking identifiers.
type ShipmentResult struct {
	ExternalID     string
	TrackingNumber string
	CourierCode    string
	CourierName    string
	LabelURL       string
	TrackingURL    string
	Cost           decimal.Decimal
}

// Adapter is one courier aggregator integration.
type Adapter interface {
	Code() string
	QuoteRates(ctx context.Context, params QuoteParams) ([]Rate, error)
	CreateShipment(ctx context.Context, params CreateShipmentParams) (*ShipmentResult, error)
}

// Factory builds an adapter from decrypted account credentials.
type Factory func(creds Credentials) (Adapter, error)

// Registry maps provider codes to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register wires a factory under the given provider code.
func (r *Registry) Register(code string, factory Factory) error {
	if code == "" {
		return errors.New("provider code required")
	}
	if factory == nil {
		return errors.New("factory required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[code]; exists {
		return fmt.Errorf("provider %q already registered", code)
	}
	r.factories[code] = factory
	return nil
}

// Build constructs an adapter for the code with the supplied credentials.
func (r *Registry) Build(code string, creds Credentials) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[code]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", code)
	}
	return factory(creds)
}

// Known reports whether the code has a registered factory.
func (r *Registry) Known(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[code]
	return ok
}

// Codes lists registered provider codes in stable order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
