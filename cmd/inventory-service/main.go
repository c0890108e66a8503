package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stockflow/stockflow-backend/internal/inventory/consumers"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/handler"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/auth"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Inventory Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx, repository.Migrations); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	m := metrics.New(cfg.Metrics.Namespace)

	// Repositories
	productRepo := repository.NewProductRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Messaging is optional; without it events are dropped and the user
	// cache is maintained out of band.
	var rmq *messaging.RabbitMQ
	publisher := events.NewInventoryEventPublisher(messaging.NopPublisher{}, log)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(ctx, &cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.OnSetup(ctx, rmq.DeclareTopology("inventory-service")); err != nil {
			log.Fatal().Err(err).Msg("failed to declare RabbitMQ topology")
		}
		publisher = events.NewInventoryEventPublisher(
			messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log), log)

		if err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log).Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start user event consumer")
		}
		rmq.Watch(ctx)
	}

	// Services
	settingsService := service.NewSettingsService(settingRepo)
	allocator := service.NewAllocator(batchRepo, log)
	notifier := service.NewViolationNotifier(alertRepo, taskRepo, userCacheRepo, publisher, m, log)
	scanner := service.NewAlertScanner(productRepo, batchRepo, alertRepo, taskRepo, userCacheRepo,
		settingsService, cfg.Alerts.ExpiryWarningDays, publisher, m, log)
	scanService := service.NewScanService(db, productRepo, batchRepo, movementRepo, allocator, notifier, scanner, publisher, m, log)
	taskService := service.NewTaskService(taskRepo, userCacheRepo, publisher, m, log)
	alertService := service.NewAlertService(alertRepo, scanner)
	queryService := service.NewStockQueryService(productRepo, batchRepo, movementRepo)

	var scheduler *service.AlertScheduler
	if cfg.Alerts.Enabled {
		scheduler = service.NewAlertScheduler(scanner, cfg.Alerts.ScanInterval, m, log)
		scheduler.Start(ctx)
	}

	// Handlers
	handlers := &handler.Handlers{
		Scan:     handler.NewScanHandler(scanService, log),
		Stock:    handler.NewStockHandler(queryService, log),
		Alerts:   handler.NewAlertHandler(alertService, log),
		Settings: handler.NewSettingsHandler(settingsService, log),
		Tasks:    handler.NewTaskHandler(taskService, log),
	}
	jwtManager := auth.NewManager(&cfg.JWT)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log, "/health", cfg.Metrics.Path))
	r.Use(httputil.Recoverer(log))
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})
	r.Handle(cfg.Metrics.Path, m.Handler())

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(jwtManager.Middleware)
		handlers.Routes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler and consumers before draining HTTP
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
