package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sahilarora/merakart-backend/internal/shipping"
	"github.com/sahilarora/merakart-backend/pkg/enums"
)

const (
	shiprocketCode        = "shiprocket"
	shiprocketBaseURL     = "https://apiv2.shiprocket.in"
	shiprocketTimeout     = 10 * time.Second
	shiprocketTokenMaxAge = 8 * 24 * time.Hour

	loginPath          = "/v1/external/auth/login"
	serviceabilityPath = "/v1/external/courier/serviceability/"
	createShipmentPath = "/v1/external/shipments/create/forward-shipment"

	shiprocketTrackingBaseURL = "https://shiprocket.co/tracking/"
)

// Shiprocket is the courier aggregator adapter for Shiprocket-style APIs.
// Authentication is email/password exchanged for a bearer token that the
// adapter caches and refreshes transparently.
type Shiprocket struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenIssued time.Time
}

// ShiprocketOption customizes the adapter.
type ShiprocketOption func(*Shiprocket)

// WithShiprocketBaseURL overrides the API host, used by tests.
func WithShiprocketBaseURL(baseURL string) ShiprocketOption {
	return func(s *Shiprocket) {
		if baseURL != "" {
			s.baseURL = baseURL
		}
	}
}

// WithShiprocketHTTPClient swaps the underlying HTTP client.
func WithShiprocketHTTPClient(hc *http.Client) ShiprocketOption {
	return func(s *Shiprocket) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// NewShiprocket builds the adapter from account credentials.
func NewShiprocket(creds shipping.Credentials, opts ...ShiprocketOption) (*Shiprocket, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, errors.New("shiprocket requires email and password credentials")
	}
	s := &Shiprocket{
		baseURL:    shiprocketBaseURL,
		email:      creds.Email,
		password:   creds.Password,
		httpClient: &http.Client{Timeout: shiprocketTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterShiprocket wires the adapter factory into the registry.
func RegisterShiprocket(registry *shipping.Registry, opts ...ShiprocketOption) error {
	return registry.Register(shiprocketCode, func(creds shipping.Credentials) (shipping.Adapter, error) {
		return NewShiprocket(creds, opts...)
	})
}

func (s *Shiprocket) Code() string {
	return shiprocketCode
}

type shiprocketCourier struct {
	CourierCompanyID int             `json:"courier_company_id"`
	CourierName      string          `json:"courier_name"`
	Rate             decimal.Decimal `json:"rate"`
	EstimatedDays    json.Number     `json:"estimated_delivery_days"`
	CODAvailable     int             `json:"cod"`
}

type serviceabilityResponse struct {
	Status int `json:"status"`
	Data   struct {
		AvailableCourierCompanies []shiprocketCourier `json:"available_courier_companies"`
	} `json:"data"`
	Message string `json:"message"`
}

// QuoteRates queries courier serviceability for the lane.
func (s *Shiprocket) QuoteRates(ctx context.Context, params shipping.QuoteParams) ([]shipping.Rate, error) {
	query := url.Values{}
	query.Set("pickup_postcode", params.FromPincode)
	query.Set("delivery_postcode", params.ToPincode)
	query.Set("weight", params.WeightKG.String())
	if params.COD {
		query.Set("cod", "1")
	} else {
		query.Set("cod", "0")
	}
	if params.DeclaredValue.IsPositive() {
		query.Set("declared_value", params.DeclaredValue.String())
	}

	var parsed serviceabilityResponse
	if err := s.doJSON(ctx, http.MethodGet, serviceabilityPath+"?"+query.Encode(), nil, &parsed); err != nil {
		return nil, err
	}

	couriers := parsed.Data.AvailableCourierCompanies
	if len(couriers) == 0 {
		return nil, shipping.ErrNotServiceable
	}

	rates := make([]shipping.Rate, 0, len(couriers))
	for _, courier := range couriers {
		days := 0
		if parsedDays, err := courier.EstimatedDays.Int64(); err == nil {
			days = int(parsedDays)
		}
		rates = append(rates, shipping.Rate{
			ProviderCode:  shiprocketCode,
			CourierCode:   fmt.Sprintf("%d", courier.CourierCompanyID),
			CourierName:   courier.CourierName,
			Cost:          courier.Rate.Round(2),
			Currency:      enums.CurrencyINR,
			EstimatedDays: days,
			CODAvailable:  courier.CODAvailable == 1,
		})
	}
	return rates, nil
}

type createShipmentRequest struct {
	OrderID       string               `json:"order_id"`
	CourierID     string               `json:"courier_id,omitempty"`
	PaymentMethod string               `json:"payment_method"`
	Weight        string               `json:"weight"`
	BillingName   string               `json:"billing_customer_name"`
	BillingAddr   string               `json:"billing_address"`
	BillingCity   string               `json:"billing_city"`
	BillingState  string               `json:"billing_state"`
	BillingPin    string               `json:"billing_pincode"`
	Items         []createShipmentItem `json:"order_items"`
}

type createShipmentItem struct {
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Units        int    `json:"units"`
	SellingPrice string `json:"selling_price"`
}

type createShipmentResponse struct {
	Payload struct {
		ShipmentID  json.Number `json:"shipment_id"`
		AWBCode     string      `json:"awb_code"`
		CourierID   json.Number `json:"courier_company_id"`
		CourierName string      `json:"courier_name"`
		LabelURL    string      `json:"label_url"`
		FreightCost string      `json:"applied_weight_amount"`
	} `json:"payload"`
	Message string `json:"message"`
}

// CreateShipment books a forward shipment and returns tracking identifiers.
func (s *Shiprocket) CreateShipment(ctx context.Context, params shipping.CreateShipmentParams) (*shipping.ShipmentResult, error) {
	if params.OrderNumber == "" {
		return nil, errors.New("order number required")
	}

	payment := "Prepaid"
	if params.COD {
		payment = "COD"
	}

	items := make([]createShipmentItem, 0, len(params.Items))
	for _, item := range params.Items {
		items = append(items, createShipmentItem{
			Name:         item.Name,
			SKU:          item.SKU,
			Units:        item.Quantity,
			SellingPrice: item.UnitPrice.StringFixed(2),
		})
	}

	body := createShipmentRequest{
		OrderID:       params.OrderNumber,
		CourierID:     params.CourierCode,
		PaymentMethod: payment,
		Weight:        params.WeightKG.String(),
		BillingName:   params.ToAddress.Name,
		BillingAddr:   params.ToAddress.Line1,
		BillingCity:   params.ToAddress.City,
		BillingState:  params.ToAddress.State,
		BillingPin:    params.ToAddress.Pincode,
		Items:         items,
	}

	var parsed createShipmentResponse
	if err := s.doJSON(ctx, http.MethodPost, createShipmentPath, body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Payload.AWBCode == "" {
		return nil, fmt.Errorf("shiprocket booking incomplete: %s", parsed.Message)
	}

	cost := decimal.Zero
	if parsed.Payload.FreightCost != "" {
		if c, err := decimal.NewFromString(parsed.Payload.FreightCost); err == nil {
			cost = c
		}
	}

	return &shipping.ShipmentResult{
		ExternalID:     parsed.Payload.ShipmentID.String(),
		TrackingNumber: parsed.Payload.AWBCode,
		CourierCode:    parsed.Payload.CourierID.String(),
		CourierName:    parsed.Payload.CourierName,
		LabelURL:       parsed.Payload.LabelURL,
		TrackingURL:    shiprocketTrackingBaseURL + parsed.Payload.AWBCode,
		Cost:           cost,
	}, nil
}

func (s *Shiprocket) doJSON(ctx context.Context, method, path string, body any, out any) error {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling shiprocket: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading shiprocket response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return shipping.ErrNotServiceable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(raw))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("shiprocket returned %d: %s", resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding shiprocket response: %w", err)
		}
	}
	return nil
}

func (s *Shiprocket) ensureToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Since(s.tokenIssued) < shiprocketTokenMaxAge {
		return s.token, nil
	}

	payload, err := json.Marshal(map[string]string{"email": s.email, "password": s.password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("shiprocket login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shiprocket login returned %d", resp.StatusCode)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding shiprocket login: %w", err)
	}
	if parsed.Token == "" {
		return "", errors.New("shiprocket login returned empty token")
	}

	s.token = parsed.Token
	s.tokenIssued = time.Now()
	return s.token, nil
}
