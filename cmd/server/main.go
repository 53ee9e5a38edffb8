package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cardpay/internal/app"
	"cardpay/internal/config"
	"cardpay/internal/handler"
	"cardpay/internal/provider/iyzico"
	internalRedis "cardpay/internal/redis"
	"cardpay/internal/repository/postgres"
	"cardpay/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host))

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	if cfg.Iyzico.APIKey == "" || cfg.Iyzico.SecretKey == "" {
		logger.Warn("iyzico credentials are not configured; checkout calls will be rejected by the provider")
	}

	server := wireServer(db, redisClient, nrApp, logger, cfg)

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Checkout.ProviderDeadline+5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, logger *zap.Logger, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	escrowStore := internalRedis.NewEscrowStore(redisClient, cfg.Vault.EscrowTTL)
	lockStore := internalRedis.NewLockStore(redisClient)
	eventBus := internalRedis.NewEventBus(redisClient)

	// Initialize repositories.
	userRepo := postgres.NewUserRepository(db)
	cardRepo := postgres.NewCardRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)

	// Payment provider. External calls become New Relic segments when a
	// transaction is on the request context.
	iyzicoClient := iyzico.NewClient(iyzico.Config{
		APIKey:    cfg.Iyzico.APIKey,
		SecretKey: cfg.Iyzico.SecretKey,
		BaseURL:   cfg.Iyzico.BaseURL,
		Timeout:   cfg.Iyzico.RequestTimeout,
	}, &http.Client{
		Timeout:   cfg.Iyzico.RequestTimeout,
		Transport: newrelic.NewRoundTripper(http.DefaultTransport),
	})

	// Initialize services.
	notificationService := service.NewNotificationService(eventBus, logger)
	userService := service.NewUserService(userRepo, logger)
	cardService := service.NewCardService(cardRepo, escrowStore, lockStore, notificationService, logger, service.CardServiceConfig{
		MaxCardsPerUser: cfg.Vault.MaxCardsPerUser,
		LockTTL:         cfg.Vault.LockTTL,
	})
	checkoutService := service.NewCheckoutService(paymentRepo, userService, iyzicoClient, logger, service.CheckoutConfig{
		CallbackURL: cfg.Iyzico.CallbackURL,
	})
	reconcileService := service.NewReconcileService(paymentRepo, iyzicoClient, notificationService, logger)

	// Initialize handlers.
	cardHandler := handler.NewCardHandler(cardService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, reconcileService, handler.CheckoutDefaults{
		Currency:         cfg.Checkout.DefaultCurrency,
		BuyerIP:          cfg.Checkout.DefaultBuyerIP,
		ProviderDeadline: cfg.Checkout.ProviderDeadline,
	})
	userHandler := handler.NewUserHandler(userService)

	router := app.NewRouter(app.RouterDeps{
		CardHandler:     cardHandler,
		CheckoutHandler: checkoutHandler,
		UserHandler:     userHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		Logger:          logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
