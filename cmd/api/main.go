package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/deliverly/checkout-core/api/routes"
	"github.com/deliverly/checkout-core/internal/cart"
	"github.com/deliverly/checkout-core/internal/checkout"
	"github.com/deliverly/checkout-core/internal/pricing"
	"github.com/deliverly/checkout-core/pkg/config"
	"github.com/deliverly/checkout-core/pkg/db"
	"github.com/deliverly/checkout-core/pkg/logger"
	"github.com/deliverly/checkout-core/pkg/metrics"
	"github.com/deliverly/checkout-core/pkg/orderapi"
	"github.com/deliverly/checkout-core/pkg/pricingapi"
)

// logNotifier surfaces rollback notifications as log lines until a push
// channel to the web client exists.
type logNotifier struct {
	logg *logger.Logger
}

func (n logNotifier) Notify(ctx context.Context, message string) {
	n.logg.Warn(n.logg.WithField(ctx, "notification", message), "cart.user_notification")
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "checkout-core"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "checkout-core",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open cart store", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing cart store", err)
		}
	}()

	repo, err := cart.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to prepare cart repository", err)
		os.Exit(1)
	}

	pricingClient, err := pricingapi.NewClient(cfg.Pricing.BaseURL, pricingapi.WithTimeout(cfg.Pricing.Timeout))
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing client", err)
		os.Exit(1)
	}

	orderClient, err := orderapi.NewClient(cfg.Orders.BaseURL, orderapi.WithTimeout(cfg.Orders.Timeout))
	if err != nil {
		logg.Error(context.Background(), "failed to build order client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	cartMetrics := metrics.NewCartMetrics(registry)

	reconciler, err := pricing.NewReconciler(pricing.Options{
		Quoter:         pricingClient,
		DebounceWindow: cfg.Pricing.DebounceWindow,
		Logger:         logg,
		Metrics:        cartMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing reconciler", err)
		os.Exit(1)
	}

	coordinator, err := checkout.NewCoordinator(checkout.Options{
		Reconciler:                  reconciler,
		Submitter:                   orderClient,
		Notifier:                    logNotifier{logg: logg},
		Repo:                        repo,
		Logger:                      logg,
		Metrics:                     cartMetrics,
		ReplaceOnRestaurantConflict: cfg.Cart.ReplaceOnRestaurantConflict,
		ConfirmLatency:              cfg.Cart.ConfirmLatency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build mutation coordinator", err)
		os.Exit(1)
	}

	if err := coordinator.LoadPersisted(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to restore persisted cart", err)
	}

	router := routes.NewRouter(cfg, logg, dbClient, routes.Services{
		Cart:     coordinator,
		Checkout: coordinator,
	}, registry)

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logg.Info(logg.WithField(context.Background(), "port", cfg.App.Port), "server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(context.Background(), "server stopped unexpectedly", err)
			os.Exit(1)
		}
	}()

	<-shutdown
	logg.Info(context.Background(), "shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	if err := coordinator.Close(ctx); err != nil {
		logg.Error(ctx, "error closing coordinator", err)
	}
}
