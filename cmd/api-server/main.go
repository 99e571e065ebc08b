// cmd/api-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kyc-orchestrator/internal/audit"
	"kyc-orchestrator/internal/common/config"
	"kyc-orchestrator/internal/common/database"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/common/observability"
	"kyc-orchestrator/internal/notifier"
	"kyc-orchestrator/internal/orchestrator"
	"kyc-orchestrator/internal/provider"
	"kyc-orchestrator/internal/server"
	"kyc-orchestrator/internal/steps"
	"kyc-orchestrator/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting KYC API server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("provider_env", cfg.Provider.Environment),
	)

	obs := observability.New("api-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if err := store.EnsureSchema(ctx, pg); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) with retry ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init notification channels ---
	reviewNotifier, err := notifier.New(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("notifier setup failed", zap.Error(err))
	}

	// --- Wire the application ---
	providerClient := provider.NewClient(cfg.Provider, log)
	stepStore := store.NewStepStore(pg, log)

	service := orchestrator.NewService(orchestrator.Deps{
		Provider:      providerClient,
		Machine:       steps.NewMachine(stepStore, log),
		Applicants:    store.NewApplicantStore(pg, log),
		Steps:         stepStore,
		Documents:     store.NewDocumentStore(pg, log),
		Events:        store.NewWebhookEventStore(pg, log),
		Cache:         redis,
		Notifier:      reviewNotifier,
		Audit:         audit.NewIndexer(esClient, cfg.Database.Elasticsearch.AuditIndex, log),
		WebhookSecret: cfg.Provider.WebhookSecret,
		Logger:        log,
	})

	srv := server.New(cfg.Server, cfg.Provider, service, log)

	// --- Graceful shutdown ---
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		zapLog.Fatal("server exited with error", zap.Error(err))
	}
	zapLog.Info("Server stopped cleanly")
}
