package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sahilarora/merakart-backend/api/routes"
	"github.com/sahilarora/merakart-backend/internal/notifications"
	"github.com/sahilarora/merakart-backend/internal/orders"
	"github.com/sahilarora/merakart-backend/internal/payments"
	"github.com/sahilarora/merakart-backend/internal/providers"
	"github.com/sahilarora/merakart-backend/internal/shipping"
	"github.com/sahilarora/merakart-backend/internal/shipping/adapters"
	"github.com/sahilarora/merakart-backend/pkg/config"
	"github.com/sahilarora/merakart-backend/pkg/db"
	"github.com/sahilarora/merakart-backend/pkg/logger"
	"github.com/sahilarora/merakart-backend/pkg/metrics"
	"github.com/sahilarora/merakart-backend/pkg/migrate"
	"github.com/sahilarora/merakart-backend/pkg/razorpay"
	pkgredis "github.com/sahilarora/merakart-backend/pkg/redis"
	"github.com/sahilarora/merakart-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	shippingMetrics := metrics.NewShippingMetrics(registry)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	cipher, err := security.NewCredentialCipher(cfg.Credentials.EncryptionSecret)
	if err != nil {
		logg.Error(context.Background(), "failed to build credential cipher", err)
		os.Exit(1)
	}

	adapterRegistry := shipping.NewRegistry()
	if err := adapters.RegisterShiprocket(adapterRegistry); err != nil {
		logg.Error(context.Background(), "failed to register shiprocket adapter", err)
		os.Exit(1)
	}

	providersSvc, err := providers.NewService(
		providers.NewRepository(dbClient.DB()), dbClient, cipher, adapterRegistry, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create providers service", err)
		os.Exit(1)
	}

	aggregator, err := shipping.NewAggregator(providersSvc, redisClient, cfg.Shipping, logg, shippingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create rate aggregator", err)
		os.Exit(1)
	}

	gateway, err := razorpay.New(cfg.Gateway.KeyID, cfg.Gateway.KeySecret,
		razorpay.WithBaseURL(cfg.Gateway.BaseURL),
		razorpay.WithWebhookSecret(cfg.Gateway.WebhookSecret),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(
		payments.NewRepository(dbClient.DB()), dbClient, gateway, notificationsSvc,
		cfg.Gateway, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()), dbClient, providersSvc, cfg.Shipping, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, registry, dbClient, redisClient,
			aggregator, paymentsSvc, ordersSvc, providersSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
