package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/config"
	"github.com/forprompt/forprompt/api/internal/repository/postgres"
)

// Server is the background worker server
type Server struct {
	logger    *zap.Logger
	config    *config.Config
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	client    *asynq.Client
}

// Dependencies holds what the workers need from the rest of the system
type Dependencies struct {
	TraceRepo   *postgres.TraceRepository
	ProjectRepo *postgres.ProjectRepository
}

// NewServer creates a new worker server
func NewServer(
	logger *zap.Logger,
	cfg *config.Config,
	deps *Dependencies,
) (*Server, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				cfg.Worker.QueueCritical: 6,
				cfg.Worker.QueueDefault:  3,
				cfg.Worker.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	client := asynq.NewClient(redisOpt)

	cleanupWorker := NewCleanupWorker(
		logger,
		deps.TraceRepo,
		deps.ProjectRepo,
		client,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProjectClear, cleanupWorker.ProcessProjectClearTask)
	mux.HandleFunc(TypeRetentionSweep, cleanupWorker.ProcessRetentionSweepTask)
	mux.HandleFunc(TypeProjectRetention, cleanupWorker.ProcessProjectRetentionTask)
	mux.HandleFunc(TypeOrphanSweep, cleanupWorker.ProcessOrphanSweepTask)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: &asynqLogger{logger: logger},
	})

	return &Server{
		logger:    logger,
		config:    cfg,
		server:    server,
		mux:       mux,
		scheduler: scheduler,
		client:    client,
	}, nil
}

// Start starts the worker server and its scheduler. Blocks until shutdown.
func (s *Server) Start() error {
	if err := s.registerScheduledTasks(); err != nil {
		return fmt.Errorf("failed to register scheduled tasks: %w", err)
	}

	go func() {
		if err := s.scheduler.Run(); err != nil {
			s.logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	s.logger.Info("starting worker server",
		zap.Int("concurrency", s.config.Worker.Concurrency),
		zap.Bool("retention_enabled", s.config.Retention.Enabled),
	)

	return s.server.Run(s.mux)
}

// Stop stops the worker server
func (s *Server) Stop() {
	s.server.Shutdown()
	s.scheduler.Shutdown()
	s.client.Close()
}

// registerScheduledTasks registers periodic tasks with the scheduler
func (s *Server) registerScheduledTasks() error {
	if s.config.Retention.Enabled {
		task, err := NewRetentionSweepTask(&RetentionSweepPayload{
			RetentionDays: s.config.Retention.Days,
		})
		if err != nil {
			return err
		}
		// Nightly, before the orphan sweep
		if _, err := s.scheduler.Register("0 3 * * *", task, asynq.Queue("low")); err != nil {
			return fmt.Errorf("failed to register retention sweep: %w", err)
		}
	}

	orphanTask, err := NewOrphanSweepTask(&OrphanSweepPayload{DryRun: false})
	if err != nil {
		return err
	}
	if _, err := s.scheduler.Register("30 3 * * *", orphanTask, asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to register orphan sweep: %w", err)
	}

	return nil
}

// asynqLogger adapts zap.Logger to asynq.Logger
type asynqLogger struct {
	logger *zap.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
