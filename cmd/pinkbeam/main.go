package main

import (
	"context"
	"net/http"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/pinkbeam/platform/pkg/config"
	"github.com/pinkbeam/platform/pkg/httputil"
	"github.com/pinkbeam/platform/pkg/notifications"
	"github.com/pinkbeam/platform/pkg/observability"
	"github.com/pinkbeam/platform/pkg/search"
	"github.com/pinkbeam/platform/pkg/storage/postgres"
	"github.com/pinkbeam/platform/pkg/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	manager, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	manager.StartHealthCheckRoutine(ctx, 30*time.Second)
	db := manager.Primary()

	// Redis is optional; without it the unread cache runs L1-only.
	var redisClient *goredis.Client
	if cfg.Redis.URL != "" {
		rc, err := postgres.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing without shared cache")
		} else {
			redisClient = rc.GetClient()
			defer rc.Close()
		}
	}

	// Observability
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	// Services. Search is read-only, so it queries through the manager and
	// lands on replicas when any are configured.
	searchService := search.NewService(manager)
	searchHandlers := search.NewHandlers(searchService, metrics)

	unreadCache := notifications.NewUnreadCache(1024, 30*time.Second, redisClient, metrics, logger)
	notificationService := notifications.NewService(db, logger, unreadCache, metrics)
	if err := notificationService.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Error("failed to ensure notification schema")
		os.Exit(1)
	}

	webhookManager := webhooks.NewManager(ctx, logger, metrics)
	webhookManager.StartRetryWorker(ctx)
	if cfg.Webhooks.ConfigPath != "" {
		if err := webhookManager.LoadConfig(cfg.Webhooks.ConfigPath); err != nil {
			logger.WithError(err).Error("failed to load webhook config")
			os.Exit(1)
		}
		if cfg.Webhooks.WatchConfig {
			if err := webhookManager.WatchConfig(ctx, cfg.Webhooks.ConfigPath); err != nil {
				logger.WithError(err).Warn("webhook config watching disabled")
			}
		}
	}

	notificationHandlers := notifications.NewHandlers(notificationService, webhookManager)
	webhookHandlers := webhooks.NewHandlers(webhookManager)

	// API router
	router := mux.NewRouter()
	searchHandlers.RegisterRoutes(router)
	notificationHandlers.RegisterRoutes(router)
	webhookHandlers.RegisterRoutes(router)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(1<<20),
		observability.HTTPMetricsMiddleware(metrics),
	)(router)
	handler = otelhttp.NewHandler(handler, "pinkbeam-api")

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapes.
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(healthMux, checker)
	healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.Infof("API server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			cancel()
		}
	}()

	// Metrics need live pool stats; poll instead of instrumenting every query.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := manager.Stats()
				metrics.CollectDBStats(stats.InUse, stats.Idle)
			}
		}
	}()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("health server", func(shutdownCtx context.Context) error {
		return healthServer.Shutdown(shutdownCtx)
	})
	shutdown.RegisterShutdownFunc("webhook deliveries", func(shutdownCtx context.Context) error {
		webhookManager.StopRetryWorker()
		return webhookManager.Shutdown(shutdownCtx)
	})
	shutdown.RegisterShutdownFunc("otel providers", func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, providers, logger)
	})
	shutdown.RegisterShutdownFunc("database pool", func(context.Context) error {
		cancel()
		return manager.Close()
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
