package controllers

import (
	"net/http"
	"time"

	"github.com/sahilarora/merakart-backend/api/responses"
	"github.com/sahilarora/merakart-backend/api/validators"
	"github.com/sahilarora/merakart-backend/internal/providers"
	"github.com/sahilarora/merakart-backend/internal/shipping"
	"github.com/sahilarora/merakart-backend/pkg/db/models"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
)

// providerView strips credential ciphertext from API responses.
type providerView struct {
	ID              string  `json:"id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	CredentialType  string  `json:"credential_type"`
	Priority        int     `json:"priority"`
	Active          bool    `json:"active"`
	LastValidatedAt *string `json:"last_validated_at,omitempty"`
	DisconnectedAt  *string `json:"disconnected_at,omitempty"`
}

func toProviderView(p models.ShippingProvider) providerView {
	view := providerView{
		ID:             p.ID.String(),
		Code:           p.Code,
		Name:           p.Name,
		CredentialType: string(p.CredentialType),
		Priority:       p.Priority,
		Active:         p.Active,
	}
	if p.LastValidatedAt != nil {
		ts := p.LastValidatedAt.UTC().Format(time.RFC3339)
		view.LastValidatedAt = &ts
	}
	if p.DisconnectedAt != nil {
		ts := p.DisconnectedAt.UTC().Format(time.RFC3339)
		view.DisconnectedAt = &ts
	}
	return view
}

// AdminProviderList returns every provider account, connected or not.
func AdminProviderList(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "providers service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]providerView, 0, len(list))
		for _, p := range list {
			views = append(views, toProviderView(p))
		}
		responses.WriteSuccess(w, views)
	}
}

type connectProviderRequest struct {
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Token    string `json:"token,omitempty"`
}

// AdminProviderConnect stores encrypted credentials and enables the account.
func AdminProviderConnect(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "providers service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		providerID, err := validators.UUIDParam(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload connectProviderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := svc.Connect(r.Context(), providers.ConnectInput{
			ProviderID: providerID,
			Credentials: shipping.Credentials{
				Email:    payload.Email,
				Password: payload.Password,
				APIKey:   payload.APIKey,
				Token:    payload.Token,
			},
			ActorID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProviderView(*provider))
	}
}

// AdminProviderDisconnect disables the account and wipes stored credentials.
func AdminProviderDisconnect(svc providers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "providers service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		providerID, err := validators.UUIDParam(r, "providerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := svc.Disconnect(r.Context(), providerID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProviderView(*provider))
	}
}
