package controllers

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sahilarora/merakart-backend/api/responses"
	"github.com/sahilarora/merakart-backend/api/validators"
	"github.com/sahilarora/merakart-backend/internal/shipping"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
)

type shippingRatesRequest struct {
	FromPincode   string           `json:"from_pincode" validate:"required,len=6"`
	ToPincode     string           `json:"to_pincode" validate:"required,len=6"`
	WeightKG      decimal.Decimal  `json:"weight_kg" validate:"required"`
	LengthCM      decimal.Decimal  `json:"length_cm"`
	WidthCM       decimal.Decimal  `json:"width_cm"`
	HeightCM      decimal.Decimal  `json:"height_cm"`
	COD           bool             `json:"cod"`
	DeclaredValue *decimal.Decimal `json:"declared_value,omitempty"`
	Strategy      string           `json:"strategy,omitempty"`
}

// ShippingRates quotes shipping across all connected providers.
func ShippingRates(aggregator *shipping.Aggregator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if aggregator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rate aggregator unavailable"))
			return
		}

		var payload shippingRatesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		strategy, err := enums.ParseRateStrategy(payload.Strategy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid strategy %q", payload.Strategy)))
			return
		}

		req := shipping.QuoteRequest{
			FromPincode: payload.FromPincode,
			ToPincode:   payload.ToPincode,
			WeightKG:    payload.WeightKG,
			LengthCM:    payload.LengthCM,
			WidthCM:     payload.WidthCM,
			HeightCM:    payload.HeightCM,
			COD:         payload.COD,
			Strategy:    strategy,
		}
		if payload.DeclaredValue != nil {
			req.DeclaredValue = *payload.DeclaredValue
		}

		result, err := aggregator.GetRates(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
