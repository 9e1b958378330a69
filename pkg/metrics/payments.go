package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records gateway order and verification outcomes.
type PaymentMetrics struct {
	ordersCreated     prometheus.Counter
	verifications     *prometheus.CounterVec
	webhookSignatures *prometheus.CounterVec
}

// NewPaymentMetrics registers payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_orders_created",
		Help: "Gateway payment orders created.",
	})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications",
		Help: "Payment signature verification outcomes.",
	}, []string{"result"})
	webhookSignatures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_signatures",
		Help: "Webhook signature verification outcomes.",
	}, []string{"result"})
	reg.MustRegister(ordersCreated, verifications, webhookSignatures)
	return &PaymentMetrics{
		ordersCreated:     ordersCreated,
		verifications:     verifications,
		webhookSignatures: webhookSignatures,
	}
}

// IncOrderCreated counts a newly registered gateway order.
func (m *PaymentMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncVerification counts a payment verification by result ("ok" or "rejected").
func (m *PaymentMetrics) IncVerification(result string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncWebhookSignature counts a webhook signature check by result.
func (m *PaymentMetrics) IncWebhookSignature(result string) {
	if m == nil || m.webhookSignatures == nil {
		return
	}
	m.webhookSignatures.WithLabelValues(normalizeLabel(result)).Inc()
}
