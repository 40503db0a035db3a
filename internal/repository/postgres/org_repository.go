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

// OrgRepository handles organization data operations in PostgreSQL
type OrgRepository struct {
	db *database.PostgresDB
}

// NewOrgRepository creates a new organization repository
func NewOrgRepository(db *database.PostgresDB) *OrgRepository {
	return &OrgRepository{db: db}
}

// GetByID retrieves an organization by ID
func (r *OrgRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	query := `
		SELECT id, name, billing_period_start, billing_period_end, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	var org domain.Organization
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.BillingPeriodStart,
		&org.BillingPeriodEnd,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("organization")
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}
