package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/pkg/database"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
)

// UsageRepository handles usage ledger operations in PostgreSQL
type UsageRepository struct {
	db *database.PostgresDB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *database.PostgresDB) *UsageRepository {
	return &UsageRepository{db: db}
}

// ledgerColumn maps a metric to its ledger column. The enum is closed, so
// interpolating the column name into SQL is safe.
func ledgerColumn(metric domain.UsageMetric) (string, error) {
	switch metric {
	case domain.MetricProductionTokens:
		return "production_tokens", nil
	case domain.MetricTraces:
		return "trace_count", nil
	case domain.MetricSpans:
		return "span_count", nil
	case domain.MetricPromptTests:
		return "prompt_test_count", nil
	case domain.MetricAnalysisRuns:
		return "analysis_run_count", nil
	case domain.MetricInternalAITokens:
		return "internal_ai_tokens", nil
	default:
		return "", fmt.Errorf("unknown usage metric: %d", metric)
	}
}

// Increment adds delta to one counter of the organization's ledger row for
// the given period, creating the row if this is the period's first write.
// The upsert folds the read-modify-write into a single statement so
// concurrent increments never lose updates.
func (r *UsageRepository) Increment(ctx context.Context, orgID uuid.UUID, period domain.BillingPeriod, metric domain.UsageMetric, delta int64) error {
	column, err := ledgerColumn(metric)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO usage_ledgers (id, organization_id, period_start, period_end, %s, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (organization_id, period_start)
		DO UPDATE SET %s = usage_ledgers.%s + EXCLUDED.%s, updated_at = NOW()
	`, column, column, column, column)

	_, err = r.db.Pool.Exec(ctx, query, uuid.New(), orgID, period.Start, period.End, delta)
	if err != nil {
		return fmt.Errorf("failed to increment usage ledger: %w", err)
	}

	return nil
}

// GetCurrent retrieves the ledger row covering the given period start.
// A missing row means no usage has been recorded yet this period.
func (r *UsageRepository) GetCurrent(ctx context.Context, orgID uuid.UUID, period domain.BillingPeriod) (*domain.UsageLedger, error) {
	query := `
		SELECT id, organization_id, period_start, period_end, production_tokens, trace_count, span_count, prompt_test_count, analysis_run_count, internal_ai_tokens, created_at, updated_at
		FROM usage_ledgers
		WHERE organization_id = $1 AND period_start = $2
	`

	var ledger domain.UsageLedger
	err := r.db.Pool.QueryRow(ctx, query, orgID, period.Start).Scan(
		&ledger.ID,
		&ledger.OrganizationID,
		&ledger.PeriodStart,
		&ledger.PeriodEnd,
		&ledger.ProductionTokens,
		&ledger.TraceCount,
		&ledger.SpanCount,
		&ledger.PromptTestCount,
		&ledger.AnalysisRunCount,
		&ledger.InternalAITokens,
		&ledger.CreatedAt,
		&ledger.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("usage ledger")
		}
		return nil, fmt.Errorf("failed to get usage ledger: %w", err)
	}

	return &ledger, nil
}

// ListByOrganization retrieves all ledger rows for an organization,
// newest period first
func (r *UsageRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.UsageLedger, error) {
	query := `
		SELECT id, organization_id, period_start, period_end, production_tokens, trace_count, span_count, prompt_test_count, analysis_run_count, internal_ai_tokens, created_at, updated_at
		FROM usage_ledgers
		WHERE organization_id = $1
		ORDER BY period_start DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []domain.UsageLedger
	for rows.Next() {
		var ledger domain.UsageLedger
		if err := rows.Scan(
			&ledger.ID,
			&ledger.OrganizationID,
			&ledger.PeriodStart,
			&ledger.PeriodEnd,
			&ledger.ProductionTokens,
			&ledger.TraceCount,
			&ledger.SpanCount,
			&ledger.PromptTestCount,
			&ledger.AnalysisRunCount,
			&ledger.InternalAITokens,
			&ledger.CreatedAt,
			&ledger.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage ledger: %w", err)
		}
		ledgers = append(ledgers, ledger)
	}

	return ledgers, nil
}
