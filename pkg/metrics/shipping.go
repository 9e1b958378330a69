package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShippingMetrics records provider quote fan-out behavior.
type ShippingMetrics struct {
	quoteDuration *prometheus.HistogramVec
	quoteFailures *prometheus.CounterVec
	quoteTimeouts *prometheus.CounterVec
	ratesReturned *prometheus.HistogramVec
}

// NewShippingMetrics registers the quote metrics on the provided registerer.
func NewShippingMetrics(reg prometheus.Registerer) *ShippingMetrics {
	if reg == nil {
		return &ShippingMetrics{}
	}
	quoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shipping_quote_duration_seconds",
		Help:    "Duration of provider rate quote calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	quoteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipping_quote_failures",
		Help: "Provider rate quote calls that returned an error.",
	}, []string{"provider"})
	quoteTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipping_quote_timeouts",
		Help: "Provider rate quote calls that exceeded the deadline.",
	}, []string{"provider"})
	ratesReturned := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shipping_rates_returned",
		Help:    "Number of rates returned per provider quote call.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"provider"})
	reg.MustRegister(quoteDuration, quoteFailures, quoteTimeouts, ratesReturned)
	return &ShippingMetrics{
		quoteDuration: quoteDuration,
		quoteFailures: quoteFailures,
		quoteTimeouts: quoteTimeouts,
		ratesReturned: ratesReturned,
	}
}

// ObserveQuote records the duration and result count of one provider call.
func (m *ShippingMetrics) ObserveQuote(provider string, duration time.Duration, rates int) {
	if m == nil || m.quoteDuration == nil {
		return
	}
	label := normalizeLabel(provider)
	m.quoteDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.ratesReturned.WithLabelValues(label).Observe(float64(rates))
}

// IncFailure increments the failure counter for the provider.
func (m *ShippingMetrics) IncFailure(provider string) {
	if m == nil || m.quoteFailures == nil {
		return
	}
	m.quoteFailures.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncTimeout increments the timeout counter for the provider.
func (m *ShippingMetrics) IncTimeout(provider string) {
	if m == nil || m.quoteTimeouts == nil {
		return
	}
	m.quoteTimeouts.WithLabelValues(normalizeLabel(provider)).Inc()
}

func normalizeLabel(provider string) string {
	if provider == "" {
		return "unknown"
	}
	return provider
}
