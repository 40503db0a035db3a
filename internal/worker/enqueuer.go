package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer pushes background tasks onto the queue from the API process.
// It implements service.ClearEnqueuer.
type Enqueuer struct {
	logger *zap.Logger
	client *asynq.Client
}

// NewEnqueuer creates an enqueuer over an asynq client
func NewEnqueuer(logger *zap.Logger, client *asynq.Client) *Enqueuer {
	return &Enqueuer{logger: logger, client: client}
}

// EnqueueClearProject queues deletion of every trace in a project
func (e *Enqueuer) EnqueueClearProject(ctx context.Context, projectID uuid.UUID) error {
	task, err := NewProjectClearTask(&ProjectClearPayload{ProjectID: projectID})
	if err != nil {
		return err
	}

	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("failed to enqueue project clear: %w", err)
	}

	e.logger.Info("queued project trace clear",
		zap.String("project_id", projectID.String()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)

	return nil
}

// Close releases the underlying client connection
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
