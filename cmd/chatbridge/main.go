package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/converso-labs/chatbridge/internal/anomaly"
	"github.com/converso-labs/chatbridge/internal/bridge"
	"github.com/converso-labs/chatbridge/internal/clients/chatapi"
	"github.com/converso-labs/chatbridge/internal/clients/crm"
	"github.com/converso-labs/chatbridge/internal/config"
	"github.com/converso-labs/chatbridge/internal/deadletter"
	"github.com/converso-labs/chatbridge/internal/dispatch"
	"github.com/converso-labs/chatbridge/internal/executor"
	"github.com/converso-labs/chatbridge/internal/guard"
	"github.com/converso-labs/chatbridge/internal/handlers"
	"github.com/converso-labs/chatbridge/internal/idempotency"
	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/middleware"
	"github.com/converso-labs/chatbridge/internal/queue"
	"github.com/converso-labs/chatbridge/internal/server"
	"github.com/converso-labs/chatbridge/internal/signature"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("chatbridge"))

	logger.Info("Starting chatbridge",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx := context.Background()

	// Idempotency store
	var idemStore idempotency.Store
	if cfg.Redis.Enabled {
		idemStore, err = idempotency.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis for idempotency: %v", err)
		}
		logger.Info("Idempotency store: redis", slog.String("url", cfg.Redis.URL))
	} else {
		idemStore = idempotency.NewMemoryStore()
		logger.Warn("Idempotency store: in-memory (single instance only)")
	}
	defer idemStore.Close()

	// Anomaly counters and IP blocks
	var counters anomaly.CounterStore
	if cfg.Redis.Enabled && cfg.Anomaly.Enabled {
		counters, err = anomaly.NewRedisCounterStore(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis for anomaly detection: %v", err)
		}
	} else {
		counters = anomaly.NewMemoryCounterStore()
		if cfg.Anomaly.Enabled {
			logger.Warn("Anomaly counters: in-memory (single instance only)")
		}
	}
	defer counters.Close()
	detector := anomaly.NewDetector(counters, cfg.Anomaly.BlockDuration, logger)

	// Job queue
	var jobs queue.Queue
	if cfg.NATS.Enabled {
		jobs, err = queue.NewJetStreamQueue(ctx, cfg.NATS.URL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		logger.Info("Job queue: jetstream", slog.String("url", cfg.NATS.URL))
	} else {
		jobs = queue.NewMemoryQueue(1024)
		logger.Warn("Job queue: in-memory (jobs lost on restart)")
	}
	defer jobs.Close()

	// Dead-letter store
	var letters deadletter.Repository
	if cfg.Database.Enabled {
		logger.Info("Running database migrations")
		m, err := migrate.New(cfg.Database.MigrationsPath, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		letters, err = deadletter.NewPostgresRepository(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		logger.Info("Dead-letter store: postgres")
	} else {
		letters = deadletter.NewMemoryRepository()
		logger.Warn("Dead-letter store: in-memory (development only)")
	}
	defer letters.Close()

	// Intake pipeline
	verifier, err := signature.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.ToleranceSeconds)
	if err != nil {
		log.Fatalf("Failed to initialize signature verifier: %v", err)
	}
	sizes := guard.NewSizeGuard(cfg.Webhook.MaxPayloadBytes)
	dispatcher := dispatch.New(verifier, sizes, idemStore, jobs, detector, dispatch.Config{
		IdempotencyTTL: cfg.Webhook.IdempotencyTTL,
		DispatchDelay:  cfg.Webhook.DispatchDelay,
		MaxAttempts:    cfg.Executor.MaxAttempts,
	}, logger)

	// Downstream bridge and executor
	crmClient := crm.New(cfg.CRM.URL, cfg.CRM.APIKey, cfg.CRM.Timeout)
	chatClient := chatapi.New(cfg.Chat.URL, cfg.Chat.APIKey, cfg.Chat.Timeout)
	transformer := bridge.NewTransformer(crmClient, chatClient, logger)

	ex := executor.New(jobs, transformer, letters, logger, executor.Options{
		AttemptTimeout: cfg.Executor.AttemptTimeout,
		HighWorkers:    cfg.Executor.HighWorkers,
		NormalWorkers:  cfg.Executor.NormalWorkers,
		MaxAttempts:    cfg.Executor.MaxAttempts,
	})
	if err := ex.Start(ctx); err != nil {
		log.Fatalf("Failed to start executor: %v", err)
	}
	defer ex.Stop()

	// HTTP surface
	webhookHandler := handlers.NewWebhookHandler(dispatcher, idemStore, cfg.Webhook.MaxPayloadBytes, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
		"idempotency": func(ctx context.Context) error {
			_, err := idemStore.Seen(ctx, "readiness-probe")
			return err
		},
		"deadletters": func(ctx context.Context) error {
			_, err := letters.List(ctx, 1)
			return err
		},
	})
	adminHandler := handlers.NewAdminHandler(letters, ex, detector, logger)
	auth := middleware.NewAuthMiddleware(cfg.Admin.JWTSecret)

	router := server.NewRouter(server.RouterConfig{
		Webhook: webhookHandler,
		Health:  healthHandler,
		Admin:   adminHandler,
		Auth:    auth,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("chatbridge listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	ex.Stop()
	logger.Info("Server stopped")
}
