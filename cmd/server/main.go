package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/quartermaster/internal"
	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/handler/api"
	"github.com/dukerupert/quartermaster/internal/handler/webhook"
	"github.com/dukerupert/quartermaster/internal/middleware"
	"github.com/dukerupert/quartermaster/internal/notify"
	"github.com/dukerupert/quartermaster/internal/postgres"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/router"
	"github.com/dukerupert/quartermaster/internal/routes"
	"github.com/dukerupert/quartermaster/internal/service"
	"github.com/dukerupert/quartermaster/internal/shipping"
	"github.com/dukerupert/quartermaster/internal/tax"
	"github.com/dukerupert/quartermaster/internal/telemetry"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
)

const metricsNamespace = "quartermaster"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := repository.NewPool(ctx, cfg.DatabaseUrl, repository.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize repository
	store := repository.NewStore(pool)

	// Initialize business metrics
	telemetry.InitBusinessMetrics(metricsNamespace)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Standard shipping is free over the threshold; express comes from a
	// Stripe shipping rate when one is configured.
	shippingProvider := shipping.NewStripeRateProvider(
		shipping.NewThresholdProvider(cfg.Checkout.FreeShippingThresholdPence, cfg.Checkout.FlatShippingPence),
		billingProvider,
		cfg.Stripe.ExpressShippingRateID,
		logger,
	)

	// VAT rate was validated by the config loader
	taxCalculator, err := tax.NewVATCalculator(decimal.RequireFromString(cfg.Checkout.VATRate))
	if err != nil {
		return fmt.Errorf("failed to initialize tax calculator: %w", err)
	}

	// Order event notifications
	var notifier notify.Notifier
	if cfg.NATS.URL != "" {
		natsNotifier, err := notify.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		notifier = natsNotifier
		logger.Info("Order notifications enabled", "transport", "nats")
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Info("Order notifications will be logged only (NATS_URL not set)")
	}
	defer notifier.Close()

	// Initialize services
	checkoutService := service.NewCheckoutService(store, billingProvider, shippingProvider, taxCalculator, service.CheckoutConfig{
		BaseURL:           cfg.BaseURL,
		Currency:          cfg.Stripe.Currency,
		OrderNumberPrefix: cfg.Checkout.OrderNumberPrefix,
	}, logger)
	fulfillmentService := service.NewFulfillmentService(store, notifier, logger)
	inventoryService := service.NewInventoryService(store, logger)

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	metrics := middleware.NewMetrics(metricsNamespace, nil)

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0 // Disable HSTS in development
	}

	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		router.Recovery(logger),
		telemetry.SentryMiddleware(),
		middleware.SecurityHeaders(securityConfig),
		router.CORS(cfg.AllowedOrigins),
		metrics.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
	)

	// ==========================================================================
	// Register routes
	// ==========================================================================

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		CheckoutHandler: api.NewCheckoutHandler(checkoutService),
		CatalogHandler:  api.NewCatalogHandler(postgres.NewCatalogService(store)),
		OrderHandler:    api.NewOrderHandler(postgres.NewOrderService(store)),
	})

	routes.RegisterAdminRoutes(r, routes.AdminDeps{
		APIKey:           cfg.Admin.APIKey,
		InventoryHandler: api.NewInventoryHandler(inventoryService),
	})

	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(billingProvider, fulfillmentService).HandleWebhook,
	})

	routes.RegisterSystemRoutes(r, routes.SystemDeps{
		HealthHandler: api.NewHealthHandler(pool),
		Metrics:       metrics.Handler(),
	})

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
