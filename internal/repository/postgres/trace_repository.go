package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/pkg/database"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// TraceRepository handles trace and span data operations in PostgreSQL
type TraceRepository struct {
	db *database.PostgresDB
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(db *database.PostgresDB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Create inserts a new trace row. The (project_id, trace_id) unique index
// makes concurrent first writes for the same client trace ID collide;
// callers receive a Conflict error and fall back to reading the winner.
func (r *TraceRepository) Create(ctx context.Context, trace *domain.Trace) error {
	query := `
		INSERT INTO traces (id, project_id, trace_id, prompt_key, version_number, model, source, status, span_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		trace.ID,
		trace.ProjectID,
		trace.TraceID,
		trace.PromptKey,
		trace.VersionNumber,
		trace.Model,
		trace.Source,
		trace.Status,
		trace.SpanCount,
		trace.CreatedAt,
		trace.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.Conflict("trace already exists")
		}
		return fmt.Errorf("failed to create trace: %w", err)
	}

	return nil
}

// GetByTraceID retrieves a trace by its client-supplied trace ID
func (r *TraceRepository) GetByTraceID(ctx context.Context, projectID uuid.UUID, traceID string) (*domain.Trace, error) {
	query := `
		SELECT id, project_id, trace_id, prompt_key, version_number, model, source, status, span_count, created_at, updated_at
		FROM traces
		WHERE project_id = $1 AND trace_id = $2
	`

	var trace domain.Trace
	err := r.db.Pool.QueryRow(ctx, query, projectID, traceID).Scan(
		&trace.ID,
		&trace.ProjectID,
		&trace.TraceID,
		&trace.PromptKey,
		&trace.VersionNumber,
		&trace.Model,
		&trace.Source,
		&trace.Status,
		&trace.SpanCount,
		&trace.CreatedAt,
		&trace.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("trace")
		}
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}

	return &trace, nil
}

// GetWithSpans retrieves a trace and its spans ordered by creation time
func (r *TraceRepository) GetWithSpans(ctx context.Context, projectID uuid.UUID, traceID string) (*domain.Trace, error) {
	trace, err := r.GetByTraceID(ctx, projectID, traceID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, trace_id, project_id, version_number, type, role, content, model, input_tokens, output_tokens, duration_ms, metadata, created_at
		FROM spans
		WHERE project_id = $1 AND trace_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, projectID, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var span domain.Span
		if err := rows.Scan(
			&span.ID,
			&span.TraceID,
			&span.ProjectID,
			&span.VersionNumber,
			&span.Type,
			&span.Role,
			&span.Content,
			&span.Model,
			&span.InputTokens,
			&span.OutputTokens,
			&span.DurationMs,
			&span.Metadata,
			&span.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan span: %w", err)
		}
		trace.Spans = append(trace.Spans, span)
	}

	return trace, nil
}

// RecordSpan appends a span to an existing trace. The span insert and the
// trace counter update commit together: span_count increases by exactly
// one, and the trace's model and version number are backfilled only while
// still unset so the first span to carry a value wins permanently.
func (r *TraceRepository) RecordSpan(ctx context.Context, tracePK uuid.UUID, span *domain.Span) error {
	return database.Transaction(ctx, r.db, func(tx pgx.Tx) error {
		insertSpan := `
			INSERT INTO spans (id, trace_pk, trace_id, project_id, version_number, type, role, content, model, input_tokens, output_tokens, duration_ms, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`

		_, err := tx.Exec(ctx, insertSpan,
			span.ID,
			tracePK,
			span.TraceID,
			span.ProjectID,
			span.VersionNumber,
			span.Type,
			span.Role,
			span.Content,
			span.Model,
			span.InputTokens,
			span.OutputTokens,
			span.DurationMs,
			span.Metadata,
			span.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert span: %w", err)
		}

		updateTrace := `
			UPDATE traces
			SET span_count = span_count + 1,
			    model = CASE WHEN model = '' THEN $2 ELSE model END,
			    version_number = COALESCE(version_number, $3),
			    updated_at = NOW()
			WHERE id = $1
		`

		tag, err := tx.Exec(ctx, updateTrace, tracePK, span.Model, span.VersionNumber)
		if err != nil {
			return fmt.Errorf("failed to update trace counters: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("trace")
		}

		return nil
	})
}

// UpdateStatus sets a trace's lifecycle status
func (r *TraceRepository) UpdateStatus(ctx context.Context, projectID uuid.UUID, traceID string, status domain.TraceStatus) (*domain.Trace, error) {
	query := `
		UPDATE traces
		SET status = $3, updated_at = NOW()
		WHERE project_id = $1 AND trace_id = $2
		RETURNING id, project_id, trace_id, prompt_key, version_number, model, source, status, span_count, created_at, updated_at
	`

	var trace domain.Trace
	err := r.db.Pool.QueryRow(ctx, query, projectID, traceID, status).Scan(
		&trace.ID,
		&trace.ProjectID,
		&trace.TraceID,
		&trace.PromptKey,
		&trace.VersionNumber,
		&trace.Model,
		&trace.Source,
		&trace.Status,
		&trace.SpanCount,
		&trace.CreatedAt,
		&trace.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("trace")
		}
		return nil, fmt.Errorf("failed to update trace status: %w", err)
	}

	return &trace, nil
}

// Delete removes a trace; its spans go with it via the foreign key cascade
func (r *TraceRepository) Delete(ctx context.Context, projectID uuid.UUID, traceID string) error {
	query := `DELETE FROM traces WHERE project_id = $1 AND trace_id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, projectID, traceID)
	if err != nil {
		return fmt.Errorf("failed to delete trace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("trace")
	}

	return nil
}

// DeleteByProject removes every trace in a project and returns the count
func (r *TraceRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	query := `DELETE FROM traces WHERE project_id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project traces: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteOrphanSpans removes spans whose trace row no longer exists. Kept
// as a safety net for rows written before the cascade constraint existed.
func (r *TraceRepository) DeleteOrphanSpans(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM spans s
		WHERE NOT EXISTS (SELECT 1 FROM traces t WHERE t.id = s.trace_pk)
	`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan spans: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountOrphanSpans counts spans whose trace row no longer exists.
func (r *TraceRepository) CountOrphanSpans(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*) FROM spans s
		WHERE NOT EXISTS (SELECT 1 FROM traces t WHERE t.id = s.trace_pk)
	`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orphan spans: %w", err)
	}

	return count, nil
}

// DeleteOlderThan removes traces whose last update predates the cutoff
func (r *TraceRepository) DeleteOlderThan(ctx context.Context, projectID uuid.UUID, days int) (int64, error) {
	query := `
		DELETE FROM traces
		WHERE project_id = $1 AND updated_at < NOW() - make_interval(days => $2)
	`

	tag, err := r.db.Pool.Exec(ctx, query, projectID, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired traces: %w", err)
	}

	return tag.RowsAffected(), nil
}
