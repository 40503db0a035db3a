package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/pkg/background"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
	"github.com/forprompt/forprompt/api/internal/pkg/id"
	"github.com/forprompt/forprompt/api/internal/pkg/metrics"
)

// TraceRepository defines the interface for trace and span persistence.
// All methods must be safe for concurrent use.
type TraceRepository interface {
	// Create persists a new trace; returns a Conflict error when the
	// project already has a trace with the same client trace ID.
	Create(ctx context.Context, trace *domain.Trace) error
	// GetByTraceID retrieves a trace by its client-supplied trace ID.
	GetByTraceID(ctx context.Context, projectID uuid.UUID, traceID string) (*domain.Trace, error)
	// GetWithSpans retrieves a trace and its spans in creation order.
	GetWithSpans(ctx context.Context, projectID uuid.UUID, traceID string) (*domain.Trace, error)
	// RecordSpan appends a span and updates the trace counters atomically.
	RecordSpan(ctx context.Context, tracePK uuid.UUID, span *domain.Span) error
	// UpdateStatus sets the trace's lifecycle status.
	UpdateStatus(ctx context.Context, projectID uuid.UUID, traceID string, status domain.TraceStatus) (*domain.Trace, error)
	// Delete removes a trace and, via cascade, its spans.
	Delete(ctx context.Context, projectID uuid.UUID, traceID string) error
	// DeleteByProject removes every trace in a project.
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
}

// PromptRepository defines the interface for prompt statistics lookups.
type PromptRepository interface {
	// GetVersion retrieves a prompt version, the latest when versionNumber is nil.
	GetVersion(ctx context.Context, projectID uuid.UUID, key string, versionNumber *int) (*domain.PromptVersion, error)
	// IncrementTestCount bumps the denormalized test counter on a version.
	IncrementTestCount(ctx context.Context, versionID uuid.UUID) error
}

// UsageMeter records billable activity for a project's organization.
type UsageMeter interface {
	Meter(ctx context.Context, projectID uuid.UUID, metric domain.UsageMetric, delta int64) error
}

// EventDispatcher fans a domain event out to webhook subscribers.
type EventDispatcher interface {
	Dispatch(ctx context.Context, projectID uuid.UUID, event domain.EventType, data map[string]any) error
}

// ClearEnqueuer queues a project-wide trace deletion for background execution.
type ClearEnqueuer interface {
	EnqueueClearProject(ctx context.Context, projectID uuid.UUID) error
}

// IngestionService handles span ingestion from SDKs.
//
// This is the hot path of the platform: every SDK log call lands here. One
// call either creates a trace and attaches its first span, or attaches
// another span to an existing trace. The persisted write is the only thing
// that decides the HTTP response; usage metering, prompt statistics, and
// webhook dispatch all run detached from the request and their failures
// are logged, never surfaced to the SDK.
//
// Trace identity is the client-supplied trace ID scoped to the project.
// Concurrent first spans for the same trace ID are serialized by a Redis
// creation lock, with the unique index on (project_id, trace_id) as the
// authoritative tie breaker: the loser of an insert race reads the
// winner's row and attaches to it.
type IngestionService struct {
	logger     *zap.Logger
	traceRepo  TraceRepository
	promptRepo PromptRepository
	locker     TraceLocker
	usage      UsageMeter
	dispatcher EventDispatcher
	clearer    ClearEnqueuer
	runner     *background.Runner
}

// NewIngestionService creates a new IngestionService with the provided dependencies.
// promptRepo, usage, dispatcher and clearer may be nil; the corresponding
// side effect is skipped (project clears fall back to inline deletion).
func NewIngestionService(
	logger *zap.Logger,
	traceRepo TraceRepository,
	promptRepo PromptRepository,
	locker TraceLocker,
	usage UsageMeter,
	dispatcher EventDispatcher,
	clearer ClearEnqueuer,
	runner *background.Runner,
) *IngestionService {
	return &IngestionService{
		logger:     logger.Named("ingestion"),
		traceRepo:  traceRepo,
		promptRepo: promptRepo,
		locker:     locker,
		usage:      usage,
		dispatcher: dispatcher,
		clearer:    clearer,
		runner:     runner,
	}
}

// IngestSpan ingests a single span, creating its trace on first contact.
//
// The call is idempotent at the trace level: any number of spans may carry
// the same trace ID, and exactly one trace row ever exists for it. The span
// itself is always a new row.
//
// Usage metering, prompt test counts and webhook dispatch run detached
// after the write; their failures never fail the call. An error comes
// back only for validation or persistence failures on the write path.
func (s *IngestionService) IngestSpan(ctx context.Context, projectID uuid.UUID, input *domain.SpanInput) (*domain.IngestResult, error) {
	now := time.Now()

	source := input.Source
	if source == "" {
		source = domain.SourceUnknown
	}

	// Empty object matches the column default so both creation paths
	// round-trip the same value.
	metadata := "{}"
	if input.Metadata != nil {
		metadataBytes, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, apperrors.Validation("metadata is not serializable")
		}
		metadata = string(metadataBytes)
	}

	trace, created, err := s.resolveTrace(ctx, projectID, input, source, now)
	if err != nil {
		return nil, err
	}

	span := &domain.Span{
		ID:            id.NewSpanID(),
		TraceID:       input.TraceID,
		ProjectID:     projectID,
		VersionNumber: input.VersionNumber,
		Type:          input.Type,
		Role:          input.Role,
		Content:       input.Content,
		Model:         input.Model,
		InputTokens:   input.InputTokens,
		OutputTokens:  input.OutputTokens,
		DurationMs:    input.DurationMs,
		Metadata:      metadata,
		CreatedAt:     now,
	}

	if err := s.traceRepo.RecordSpan(ctx, trace.ID, span); err != nil {
		return nil, fmt.Errorf("failed to record span: %w", err)
	}

	metrics.RecordSpanIngested(string(span.Type))

	s.meterSpan(projectID, input, created)

	if created && s.dispatcher != nil {
		promptKey := input.PromptKey
		s.runner.Go("dispatch-trace-created", func(ctx context.Context) error {
			return s.dispatcher.Dispatch(ctx, projectID, domain.EventTypeTraceCreated, map[string]any{
				"traceId":   input.TraceID,
				"promptKey": promptKey,
				"source":    source,
			})
		})
	}

	return &domain.IngestResult{
		SpanID:  span.ID.String(),
		TraceID: input.TraceID,
	}, nil
}

// resolveTrace returns the trace for the input's trace ID, creating it when
// this span is the trace's first contact. The bool reports creation.
func (s *IngestionService) resolveTrace(ctx context.Context, projectID uuid.UUID, input *domain.SpanInput, source string, now time.Time) (*domain.Trace, bool, error) {
	trace, err := s.traceRepo.GetByTraceID(ctx, projectID, input.TraceID)
	if err == nil {
		return trace, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, err
	}

	acquired, lockErr := s.locker.Acquire(ctx, projectID, input.TraceID)
	if lockErr != nil {
		// Redis being down degrades to relying on the unique index alone
		s.logger.Warn("trace creation lock unavailable",
			zap.String("trace_id", input.TraceID),
			zap.Error(lockErr),
		)
	}
	if acquired {
		defer s.locker.Release(ctx, projectID, input.TraceID)
	} else if lockErr == nil {
		// Another request is creating this trace right now; it usually
		// lands before our re-read
		trace, err = s.traceRepo.GetByTraceID(ctx, projectID, input.TraceID)
		if err == nil {
			return trace, false, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, false, err
		}
	}

	trace = &domain.Trace{
		ID:            uuid.New(),
		ProjectID:     projectID,
		TraceID:       input.TraceID,
		PromptKey:     input.PromptKey,
		VersionNumber: input.VersionNumber,
		Model:         input.Model,
		Source:        source,
		Status:        domain.TraceStatusActive,
		SpanCount:     0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.traceRepo.Create(ctx, trace); err != nil {
		if apperrors.IsConflict(err) {
			existing, getErr := s.traceRepo.GetByTraceID(ctx, projectID, input.TraceID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return trace, true, nil
}

// meterSpan detaches the usage and prompt statistic updates for one span
func (s *IngestionService) meterSpan(projectID uuid.UUID, input *domain.SpanInput, created bool) {
	if s.usage != nil {
		s.runner.Go("meter-span", func(ctx context.Context) error {
			return s.usage.Meter(ctx, projectID, domain.MetricSpans, 1)
		})

		if tokens := input.InputTokens + input.OutputTokens; tokens > 0 {
			s.runner.Go("meter-tokens", func(ctx context.Context) error {
				return s.usage.Meter(ctx, projectID, domain.MetricProductionTokens, tokens)
			})
		}

		if created {
			s.runner.Go("meter-trace", func(ctx context.Context) error {
				return s.usage.Meter(ctx, projectID, domain.MetricTraces, 1)
			})
		}
	}

	// The prompt statistic is pinned to the version the SDK ran against,
	// so a trace without an explicit version number leaves it alone.
	if created && s.promptRepo != nil && input.VersionNumber != nil {
		promptKey := input.PromptKey
		versionNumber := input.VersionNumber
		s.runner.Go("bump-prompt-test-count", func(ctx context.Context) error {
			version, err := s.promptRepo.GetVersion(ctx, projectID, promptKey, versionNumber)
			if err != nil {
				if apperrors.IsNotFound(err) {
					// Unmanaged prompt key; nothing to count against
					return nil
				}
				return err
			}
			return s.promptRepo.IncrementTestCount(ctx, version.ID)
		})
	}
}

// GetTrace retrieves a trace with its spans
func (s *IngestionService) GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (*domain.Trace, error) {
	return s.traceRepo.GetWithSpans(ctx, projectID, traceID)
}

// UpdateTraceStatus moves a trace between lifecycle states. Completing a
// trace dispatches trace.completed to subscribers.
func (s *IngestionService) UpdateTraceStatus(ctx context.Context, projectID uuid.UUID, traceID string, input *domain.TraceStatusInput) (*domain.Trace, error) {
	status := input.Status
	if status == "" {
		status = domain.TraceStatusCompleted
	}

	trace, err := s.traceRepo.UpdateStatus(ctx, projectID, traceID, status)
	if err != nil {
		return nil, err
	}

	if status == domain.TraceStatusCompleted && s.dispatcher != nil {
		s.runner.Go("dispatch-trace-completed", func(ctx context.Context) error {
			return s.dispatcher.Dispatch(ctx, projectID, domain.EventTypeTraceCompleted, map[string]any{
				"traceId":   trace.TraceID,
				"spanCount": trace.SpanCount,
				"model":     trace.Model,
			})
		})
	}

	return trace, nil
}

// DeleteTrace removes a trace and its spans, then dispatches trace.deleted
func (s *IngestionService) DeleteTrace(ctx context.Context, projectID uuid.UUID, traceID string) error {
	if err := s.traceRepo.Delete(ctx, projectID, traceID); err != nil {
		return err
	}

	if s.dispatcher != nil {
		s.runner.Go("dispatch-trace-deleted", func(ctx context.Context) error {
			return s.dispatcher.Dispatch(ctx, projectID, domain.EventTypeTraceDeleted, map[string]any{
				"traceId": traceID,
			})
		})
	}

	return nil
}

// ClearProjectTraces queues deletion of every trace in the project. The
// deletion itself runs on the worker; the call returns once the job is
// accepted.
func (s *IngestionService) ClearProjectTraces(ctx context.Context, projectID uuid.UUID) error {
	if s.clearer == nil {
		_, err := s.traceRepo.DeleteByProject(ctx, projectID)
		return err
	}
	return s.clearer.EnqueueClearProject(ctx, projectID)
}
