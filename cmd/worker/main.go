package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/config"
	"github.com/forprompt/forprompt/api/internal/pkg/database"
	"github.com/forprompt/forprompt/api/internal/pkg/logger"
	"github.com/forprompt/forprompt/api/internal/repository/postgres"
	"github.com/forprompt/forprompt/api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Log
	defer logger.Sync()

	log.Info("starting worker service")

	deps, cleanup, err := initWorkerDependencies(cfg)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer cleanup()

	workerServer, err := worker.NewServer(log, cfg, deps)
	if err != nil {
		log.Fatal("failed to create worker server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}

// initWorkerDependencies initializes the repositories the workers need
func initWorkerDependencies(cfg *config.Config) (*worker.Dependencies, func(), error) {
	ctx := context.Background()

	pg, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	deps := &worker.Dependencies{
		TraceRepo:   postgres.NewTraceRepository(pg),
		ProjectRepo: postgres.NewProjectRepository(pg),
	}

	return deps, pg.Close, nil
}
