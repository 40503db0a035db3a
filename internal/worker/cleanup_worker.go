package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TypeProjectClear is the task type for deleting every trace in a project
	TypeProjectClear = "cleanup:project"
	// TypeRetentionSweep is the task type for fanning out retention cleanup
	TypeRetentionSweep = "cleanup:retention_sweep"
	// TypeProjectRetention is the task type for per-project retention cleanup
	TypeProjectRetention = "cleanup:retention"
	// TypeOrphanSweep is the task type for orphan span cleanup
	TypeOrphanSweep = "cleanup:orphans"
)

// ProjectClearPayload is the payload for project clear tasks
type ProjectClearPayload struct {
	ProjectID uuid.UUID `json:"project_id"`
}

// NewProjectClearTask creates a project clear task
func NewProjectClearTask(payload *ProjectClearPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project clear payload: %w", err)
	}
	return asynq.NewTask(TypeProjectClear, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// RetentionSweepPayload is the payload for retention sweep tasks
type RetentionSweepPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewRetentionSweepTask creates a retention sweep task
func NewRetentionSweepTask(payload *RetentionSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retention sweep payload: %w", err)
	}
	return asynq.NewTask(TypeRetentionSweep, data, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// ProjectRetentionPayload is the payload for per-project retention tasks
type ProjectRetentionPayload struct {
	ProjectID     uuid.UUID `json:"project_id"`
	RetentionDays int       `json:"retention_days"`
}

// NewProjectRetentionTask creates a per-project retention task
func NewProjectRetentionTask(payload *ProjectRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project retention payload: %w", err)
	}
	return asynq.NewTask(TypeProjectRetention, data, asynq.MaxRetry(3), asynq.Timeout(1*time.Hour)), nil
}

// OrphanSweepPayload is the payload for orphan sweep tasks
type OrphanSweepPayload struct {
	DryRun bool `json:"dry_run"`
}

// NewOrphanSweepTask creates an orphan sweep task
func NewOrphanSweepTask(payload *OrphanSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal orphan sweep payload: %w", err)
	}
	return asynq.NewTask(TypeOrphanSweep, data, asynq.MaxRetry(3), asynq.Timeout(1*time.Hour)), nil
}

// TraceCleaner is the subset of the trace repository the cleanup worker uses.
type TraceCleaner interface {
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	DeleteOlderThan(ctx context.Context, projectID uuid.UUID, days int) (int64, error)
	DeleteOrphanSpans(ctx context.Context) (int64, error)
	CountOrphanSpans(ctx context.Context) (int64, error)
}

// ProjectLister enumerates projects for the retention sweep.
type ProjectLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CleanupWorker handles trace cleanup tasks
type CleanupWorker struct {
	logger   *zap.Logger
	traces   TraceCleaner
	projects ProjectLister
	client   TaskEnqueuer
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(
	logger *zap.Logger,
	traces TraceCleaner,
	projects ProjectLister,
	client TaskEnqueuer,
) *CleanupWorker {
	return &CleanupWorker{
		logger:   logger,
		traces:   traces,
		projects: projects,
		client:   client,
	}
}

// ProcessProjectClearTask deletes every trace in a project. Enqueued when a
// project owner clears their trace history through the API.
func (w *CleanupWorker) ProcessProjectClearTask(ctx context.Context, t *asynq.Task) error {
	var payload ProjectClearPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal project clear payload: %w", err)
	}

	deleted, err := w.traces.DeleteByProject(ctx, payload.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to clear project traces: %w", err)
	}

	w.logger.Info("project trace clear completed",
		zap.String("project_id", payload.ProjectID.String()),
		zap.Int64("deleted_traces", deleted),
	)

	return nil
}

// ProcessRetentionSweepTask fans out one retention task per project. The
// sweep itself touches no trace data so a crash mid-fanout only means some
// projects get cleaned on the next run.
func (w *CleanupWorker) ProcessRetentionSweepTask(ctx context.Context, t *asynq.Task) error {
	var payload RetentionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal retention sweep payload: %w", err)
	}

	if payload.RetentionDays <= 0 {
		w.logger.Warn("retention sweep skipped, no retention period configured")
		return nil
	}

	ids, err := w.projects.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects for retention sweep: %w", err)
	}

	enqueued := 0
	for _, id := range ids {
		task, err := NewProjectRetentionTask(&ProjectRetentionPayload{
			ProjectID:     id,
			RetentionDays: payload.RetentionDays,
		})
		if err != nil {
			return err
		}
		if _, err := w.client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
			return fmt.Errorf("failed to enqueue retention task for project %s: %w", id, err)
		}
		enqueued++
	}

	w.logger.Info("retention sweep fanned out",
		zap.Int("projects", enqueued),
		zap.Int("retention_days", payload.RetentionDays),
	)

	return nil
}

// ProcessProjectRetentionTask deletes a project's traces older than the
// retention period.
func (w *CleanupWorker) ProcessProjectRetentionTask(ctx context.Context, t *asynq.Task) error {
	var payload ProjectRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal project retention payload: %w", err)
	}

	if payload.RetentionDays <= 0 {
		return fmt.Errorf("invalid retention period: %d days", payload.RetentionDays)
	}

	deleted, err := w.traces.DeleteOlderThan(ctx, payload.ProjectID, payload.RetentionDays)
	if err != nil {
		return fmt.Errorf("failed to delete expired traces: %w", err)
	}

	if deleted > 0 {
		w.logger.Info("retention cleanup completed",
			zap.String("project_id", payload.ProjectID.String()),
			zap.Int("retention_days", payload.RetentionDays),
			zap.Int64("deleted_traces", deleted),
		)
	}

	return nil
}

// ProcessOrphanSweepTask removes spans whose parent trace has been deleted.
func (w *CleanupWorker) ProcessOrphanSweepTask(ctx context.Context, t *asynq.Task) error {
	var payload OrphanSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal orphan sweep payload: %w", err)
	}

	if payload.DryRun {
		orphans, err := w.traces.CountOrphanSpans(ctx)
		if err != nil {
			return fmt.Errorf("failed to count orphan spans: %w", err)
		}
		w.logger.Info("orphan sweep dry run",
			zap.Int64("orphan_spans", orphans),
		)
		return nil
	}

	deleted, err := w.traces.DeleteOrphanSpans(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete orphan spans: %w", err)
	}

	w.logger.Info("orphan sweep completed",
		zap.Int64("deleted_spans", deleted),
	)

	return nil
}
