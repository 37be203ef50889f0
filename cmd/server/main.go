// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dealflow-backend/internal/cache"
	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/database"
	"github.com/javajoker/dealflow-backend/internal/events"
	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/metrics"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/router"
	"github.com/javajoker/dealflow-backend/internal/scheduler"
	"github.com/javajoker/dealflow-backend/internal/services"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := newLogger(cfg.Log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize database
	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db, log)

	if err := database.RunMigrations(db, log); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	if err := database.SeedSystemActor(db, cfg.Deal.SystemActorID, log); err != nil {
		log.WithError(err).Fatal("Failed to seed system actor")
	}

	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	// Event publishing falls back to a no-op publisher without a broker.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, deal events will not be published")
		} else {
			publisher = natsPublisher
		}
	}
	defer publisher.Close()

	// Webhook de-duplication uses Redis when enabled, process memory otherwise.
	var idempotencyStore cache.IdempotencyStore = cache.NewMemoryStore()
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, falling back to in-memory webhook de-duplication")
		} else {
			idempotencyStore = redisClient
			defer redisClient.Close()
		}
	}
	guard, err := cache.NewIdempotencyGuard(idempotencyStore, cfg.Payment.WebhookEventTTL, "stripe_webhook")
	if err != nil {
		log.WithError(err).Fatal("Failed to create webhook guard")
	}

	storage, err := services.NewStorageService(cfg.AWS, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	contractStore, err := services.NewHTMLContractStore(storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to load contract template")
	}

	users := repository.NewUserRepository(db)
	gateway := services.NewStripeGateway(cfg.Payment, cfg.Breaker, recorder, log)

	dealService := services.NewDealService(services.DealServiceDeps{
		DB:           db,
		Orchestrator: services.NewPaymentOrchestrator(gateway, repository.NewPaymentRepository(db), cfg.Payment, log),
		Contracts:    services.NewContractManager(contractStore, storage, users, cfg.Payment.Currency, log),
		Notifier:     services.NewNotificationService(repository.NewMessageRepository(db), users, publisher, recorder, log),
		Calculator:   services.NewProfitCalculator(repository.NewSalesLedger(db)),
		Products:     services.NewProductService(repository.NewProductRepository(db), log),
		Files:        storage,
		Metrics:      recorder,
		DealConfig:   cfg.Deal,
		Payment:      cfg.Payment,
		Logger:       log,
	})
	webhookService := services.NewWebhookService(dealService, guard, cfg.Payment.StripeWebhookSecret, log)

	dealScheduler := scheduler.NewDealScheduler(dealService, cfg.Scheduler, cfg.Deal.SystemActorID, recorder, log)
	if err := dealScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start deal scheduler")
	}
	defer dealScheduler.Stop()

	r := router.Initialize(ctx, cfg, router.Services{
		DB:       db,
		Deals:    dealService,
		Webhooks: webhookService,
		Auth:     services.NewJWTAuthProvider(users, log),
		Gatherer: registry,
	}, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	stop()

	log.Info("Server exited")
}
