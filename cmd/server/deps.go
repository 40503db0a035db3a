package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/config"
	"github.com/forprompt/forprompt/api/internal/handler"
	"github.com/forprompt/forprompt/api/internal/middleware"
	"github.com/forprompt/forprompt/api/internal/pkg/background"
	"github.com/forprompt/forprompt/api/internal/pkg/database"
	"github.com/forprompt/forprompt/api/internal/repository/postgres"
	"github.com/forprompt/forprompt/api/internal/service"
	"github.com/forprompt/forprompt/api/internal/worker"
	"github.com/forprompt/forprompt/api/migrations"
)

// Dependencies holds every wired component of the API server
type Dependencies struct {
	Postgres *database.PostgresDB
	Redis    *database.RedisClient
	Runner   *background.Runner
	Enqueuer *worker.Enqueuer

	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	Handlers struct {
		Health    *handler.HealthHandler
		Ingestion *handler.IngestionHandler
		Traces    *handler.TracesHandler
		Webhooks  *handler.WebhooksHandler
		Usage     *handler.UsageHandler
	}
}

// initDependencies wires the full dependency graph bottom-up:
// databases, repositories, services, handlers.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	ctx := context.Background()

	pg, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if err := migrations.Apply(ctx, pg.Pool); err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	rd, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	traceRepo := postgres.NewTraceRepository(pg)
	projectRepo := postgres.NewProjectRepository(pg)
	orgRepo := postgres.NewOrgRepository(pg)
	promptRepo := postgres.NewPromptRepository(pg)
	usageRepo := postgres.NewUsageRepository(pg)
	webhookRepo := postgres.NewWebhookRepository(pg)

	runner := background.NewRunner(logger, cfg.Ingest.SideEffectTimeout)
	locker := service.NewRedisTraceLocker(rd, cfg.Ingest.CreateLockTTL)

	enqueuer := worker.NewEnqueuer(logger, asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}))

	deliveryService := service.NewDeliveryService(logger, cfg.Webhook.RequestTimeout)
	webhookService := service.NewWebhookService(logger, webhookRepo, deliveryService)
	usageService := service.NewUsageService(logger, usageRepo, projectRepo, orgRepo)
	ingestionService := service.NewIngestionService(
		logger,
		traceRepo,
		promptRepo,
		locker,
		usageService,
		webhookService,
		enqueuer,
		runner,
	)

	deps := &Dependencies{
		Postgres: pg,
		Redis:    rd,
		Runner:   runner,
		Enqueuer: enqueuer,

		AuthMiddleware:      middleware.NewAuthMiddleware(projectRepo),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(rd, rateLimitConfig(cfg)),
	}
	deps.Handlers.Health = handler.NewHealthHandler(pg.Pool, rd.Client, appVersion)
	deps.Handlers.Ingestion = handler.NewIngestionHandler(ingestionService, logger)
	deps.Handlers.Traces = handler.NewTracesHandler(ingestionService, logger)
	deps.Handlers.Webhooks = handler.NewWebhooksHandler(webhookService, logger)
	deps.Handlers.Usage = handler.NewUsageHandler(usageService, logger)

	return deps, nil
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rlc := middleware.DefaultRateLimitConfig()
	if cfg.RateLimit.RequestsPerSecond > 0 {
		rlc.Window = time.Second
		rlc.Max = cfg.RateLimit.RequestsPerSecond
		if cfg.RateLimit.Burst > rlc.Max {
			rlc.Max = cfg.RateLimit.Burst
		}
	}
	return rlc
}

// Close releases held connections. Pending background side effects are
// drained by the caller before this runs.
func (d *Dependencies) Close() {
	if err := d.Enqueuer.Close(); err != nil {
		// nothing useful to do with this at shutdown
		_ = err
	}
	_ = d.Redis.Close()
	d.Postgres.Close()
}
