package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sahilarora/merakart-backend/api/controllers"
	"github.com/sahilarora/merakart-backend/api/middleware"
	"github.com/sahilarora/merakart-backend/internal/orders"
	"github.com/sahilarora/merakart-backend/internal/payments"
	"github.com/sahilarora/merakart-backend/internal/providers"
	"github.com/sahilarora/merakart-backend/internal/shipping"
	"github.com/sahilarora/merakart-backend/pkg/config"
	"github.com/sahilarora/merakart-backend/pkg/logger"
	pkgredis "github.com/sahilarora/merakart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *prometheus.Registry,
	dbP controllers.Pinger,
	redisClient *pkgredis.Client,
	aggregator *shipping.Aggregator,
	paymentsSvc payments.Service,
	ordersSvc orders.Service,
	providersSvc providers.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	quotePolicy := middleware.NewRateLimitPolicy("quote", cfg.RateLimit.QuoteWindow, cfg.RateLimit.QuoteIPLimit)
	verifyPolicy := middleware.NewRateLimitPolicy("verify", cfg.RateLimit.VerifyWindow, cfg.RateLimit.VerifyIPLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", controllers.RazorpayWebhook(paymentsSvc, logg))
	})

	// rate quoting is callable pre-checkout without a session
	r.With(middleware.RateLimit(quotePolicy, redisClient, logg)).
		Post("/api/v1/shipping/rates", controllers.ShippingRates(aggregator, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/create-order", controllers.PaymentCreateOrder(paymentsSvc, logg))
			r.With(middleware.RateLimit(verifyPolicy, redisClient, logg)).
				Post("/verify", controllers.PaymentVerify(paymentsSvc, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/{orderId}/fulfill", controllers.AdminOrderFulfill(ordersSvc, logg))
			r.Post("/{orderId}/status", controllers.AdminOrderTransition(ordersSvc, logg))
		})

		r.Route("/shipping/providers", func(r chi.Router) {
			r.Get("/", controllers.AdminProviderList(providersSvc, logg))
			r.Post("/{providerId}/connect", controllers.AdminProviderConnect(providersSvc, logg))
			r.Post("/{providerId}/disconnect", controllers.AdminProviderDisconnect(providersSvc, logg))
		})
	})

	return r
}
