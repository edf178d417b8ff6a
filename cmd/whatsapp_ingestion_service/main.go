package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/siddartha1192/bharat-crm-sub003/internal/platform/config"
	"github.com/siddartha1192/bharat-crm-sub003/internal/platform/database"
	"github.com/siddartha1192/bharat-crm-sub003/internal/platform/logger"
	"github.com/siddartha1192/bharat-crm-sub003/internal/platform/messagebroker"

	whatsapphttp "github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/adapters/http"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/app"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/repository/postgres"
)

const (
	serviceName     = "whatsapp_ingestion_service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger = appLogger.With("service", serviceName)
	appLogger.Info("Starting service...")

	appLogger.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"nats_url", cfg.NATSUrl,
		"postgres_dsn_present", cfg.PostgresDSN != "",
		"http_port", cfg.HTTPPort,
		"metrics_port", cfg.MetricsPort,
		"default_phone_region", cfg.DefaultPhoneRegion,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Database connection pool initialized")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("NATS connection established")

	// Repositories
	contactRepo := postgres.NewPgContactRepository(dbPool, appLogger)
	conversationRepo := postgres.NewPgConversationRepository(dbPool, appLogger)
	messageRepo := postgres.NewPgMessageRepository(dbPool, appLogger)

	// Application services
	publisher := app.NewNATSEventPublisher(natsClient, appLogger)
	resolver := app.NewContactResolver(contactRepo, appLogger)
	ingestor := app.NewIngestor(resolver, conversationRepo, messageRepo, publisher, appLogger, cfg.DefaultPhoneRegion, cfg.IngestTimeout)
	reconciler := app.NewStatusReconciler(messageRepo, publisher, appLogger, cfg.StatusBufferWindow)
	statusConsumer := app.NewStatusConsumer(natsClient, reconciler, appLogger)
	queries := app.NewQueryService(conversationRepo, messageRepo, appLogger)

	// Transport
	webhookHandler := whatsapphttp.NewWebhookHandler(ingestor, reconciler, appLogger)
	conversationHandler := whatsapphttp.NewConversationHandler(queries, appLogger)
	authMiddleware := whatsapphttp.NewAuthMiddleware(cfg.JWTAccessSecret, appLogger)
	router := whatsapphttp.NewRouter(webhookHandler, conversationHandler, authMiddleware)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}

	g, gCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return reconciler.Run(gCtx)
	})

	g.Go(func() error {
		return statusConsumer.Run(gCtx)
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			appLogger.Info("Shutdown signal received", "signal", sig.String())
		case <-gCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("HTTP server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Metrics server shutdown error", "error", err)
		}
		mainCancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Service stopped cleanly")
}
