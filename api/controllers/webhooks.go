package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/sahilarora/merakart-backend/api/responses"
	"github.com/sahilarora/merakart-backend/internal/payments"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
)

const webhookSignatureHeader = "X-Razorpay-Signature"

// maxWebhookBody bounds what the gateway can post at us.
const maxWebhookBody = 1 << 20

// RazorpayWebhook verifies the raw body signature before any parsing happens.
func RazorpayWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(webhookSignatureHeader))
		if signature == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeSignature, "missing webhook signature"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		result, err := svc.VerifyWebhook(r.Context(), signature, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
