package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sahilarora/merakart-backend/api/middleware"
	internalorders "github.com/sahilarora/merakart-backend/internal/orders"
	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
)

type testOrdersService struct {
	getFn        func(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	listFn       func(ctx context.Context, input internalorders.ListInput) (*internalorders.ListResult, error)
	transitionFn func(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error)
	fulfillFn    func(ctx context.Context, input internalorders.FulfillInput) (*internalorders.FulfillResult, error)
}

func (s *testOrdersService) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID, orderID)
	}
	return nil, nil
}

func (s *testOrdersService) List(ctx context.Context, input internalorders.ListInput) (*internalorders.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, input)
	}
	return nil, nil
}

func (s *testOrdersService) Transition(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, input)
	}
	return nil, nil
}

func (s *testOrdersService) Fulfill(ctx context.Context, input internalorders.FulfillInput) (*internalorders.FulfillResult, error) {
	if s.fulfillFn != nil {
		return s.fulfillFn(ctx, input)
	}
	return nil, nil
}

// authedRequest builds a request carrying a user identity and optional chi
// URL parameters, mirroring what the auth middleware and router provide.
func authedRequest(method, target string, body io.Reader, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for key, value := range params {
			routeCtx.URLParams.Add(key, value)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func TestOrderListRequiresUserContext(t *testing.T) {
	svc := &testOrdersService{
		listFn: func(context.Context, internalorders.ListInput) (*internalorders.ListResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	OrderList(svc, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestOrderListForwardsPagination(t *testing.T) {
	userID := uuid.New()
	var got internalorders.ListInput
	svc := &testOrdersService{
		listFn: func(_ context.Context, input internalorders.ListInput) (*internalorders.ListResult, error) {
			got = input
			return &internalorders.ListResult{NextCursor: "next"}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders?limit=5&cursor=abc", nil, userID, nil)
	rec := httptest.NewRecorder()
	OrderList(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.UserID != userID {
		t.Fatalf("expected user %s got %s", userID, got.UserID)
	}
	if got.Page.Limit != 5 || got.Page.Cursor != "abc" {
		t.Fatalf("unexpected page params %+v", got.Page)
	}
}

func TestOrderListRejectsBadLimit(t *testing.T) {
	svc := &testOrdersService{
		listFn: func(context.Context, internalorders.ListInput) (*internalorders.ListResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders?limit=banana", nil, uuid.New(), nil)
	rec := httptest.NewRecorder()
	OrderList(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestOrderDetailScopesToCaller(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &testOrdersService{
		getFn: func(_ context.Context, gotUser, gotOrder uuid.UUID) (*models.Order, error) {
			if gotUser != userID || gotOrder != orderID {
				t.Fatalf("unexpected ids user=%s order=%s", gotUser, gotOrder)
			}
			return &models.Order{ID: orderID, UserID: userID}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil, userID,
		map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	OrderDetail(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrderDetailRejectsBadID(t *testing.T) {
	svc := &testOrdersService{
		getFn: func(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders/nope", nil, uuid.New(),
		map[string]string{"orderId": "nope"})
	rec := httptest.NewRecorder()
	OrderDetail(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if code := errorCodeFromBody(t, rec.Body.Bytes()); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestAdminOrderTransitionParsesStatus(t *testing.T) {
	orderID := uuid.New()
	var got internalorders.TransitionInput
	svc := &testOrdersService{
		transitionFn: func(_ context.Context, input internalorders.TransitionInput) (*models.Order, error) {
			got = input
			return &models.Order{ID: orderID, Status: input.Target}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/status",
		strings.NewReader(`{"status":"shipped"}`), uuid.New(),
		map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	AdminOrderTransition(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.OrderID != orderID || got.Target != enums.OrderStatusShipped {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestAdminOrderTransitionRejectsUnknownStatus(t *testing.T) {
	svc := &testOrdersService{
		transitionFn: func(context.Context, internalorders.TransitionInput) (*models.Order, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	orderID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/status",
		strings.NewReader(`{"status":"teleported"}`), uuid.New(),
		map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	AdminOrderTransition(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminOrderFulfillComplete(t *testing.T) {
	orderID := uuid.New()
	svc := &testOrdersService{
		fulfillFn: func(_ context.Context, input internalorders.FulfillInput) (*internalorders.FulfillResult, error) {
			return &internalorders.FulfillResult{
				OrderID: input.OrderID,
				Outcomes: []internalorders.SellerOutcome{
					{SellerID: uuid.New(), Status: enums.ShipmentStatusCreated},
				},
			}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/fulfill",
		nil, uuid.New(), map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	AdminOrderFulfill(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminOrderFulfillPartialIsMultiStatus(t *testing.T) {
	orderID := uuid.New()
	svc := &testOrdersService{
		fulfillFn: func(_ context.Context, input internalorders.FulfillInput) (*internalorders.FulfillResult, error) {
			return &internalorders.FulfillResult{
				OrderID: input.OrderID,
				Outcomes: []internalorders.SellerOutcome{
					{SellerID: uuid.New(), Status: enums.ShipmentStatusCreated},
					{SellerID: uuid.New(), Status: enums.ShipmentStatusFailed, Error: "courier unavailable"},
				},
			}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/fulfill",
		nil, uuid.New(), map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	AdminOrderFulfill(svc, nil)(rec, req)

	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207 got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Data internalorders.FulfillResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(payload.Data.Outcomes) != 2 {
		t.Fatalf("expected both outcomes reported, got %d", len(payload.Data.Outcomes))
	}
}
