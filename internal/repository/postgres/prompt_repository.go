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

// PromptRepository handles prompt lookups and statistics in PostgreSQL
type PromptRepository struct {
	db *database.PostgresDB
}

// NewPromptRepository creates a new prompt repository
func NewPromptRepository(db *database.PostgresDB) *PromptRepository {
	return &PromptRepository{db: db}
}

// GetByKey retrieves a prompt by project and key
func (r *PromptRepository) GetByKey(ctx context.Context, projectID uuid.UUID, key string) (*domain.Prompt, error) {
	query := `
		SELECT id, project_id, key, name, created_at, updated_at
		FROM prompts
		WHERE project_id = $1 AND key = $2
	`

	var prompt domain.Prompt
	err := r.db.Pool.QueryRow(ctx, query, projectID, key).Scan(
		&prompt.ID,
		&prompt.ProjectID,
		&prompt.Key,
		&prompt.Name,
		&prompt.CreatedAt,
		&prompt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("prompt")
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}

	return &prompt, nil
}

// GetVersion retrieves a specific prompt version, or the latest when
// versionNumber is nil
func (r *PromptRepository) GetVersion(ctx context.Context, projectID uuid.UUID, key string, versionNumber *int) (*domain.PromptVersion, error) {
	query := `
		SELECT pv.id, pv.prompt_id, pv.version_number, pv.test_count, pv.created_at
		FROM prompt_versions pv
		JOIN prompts p ON p.id = pv.prompt_id
		WHERE p.project_id = $1 AND p.key = $2
	`
	args := []interface{}{projectID, key}

	if versionNumber != nil {
		query += ` AND pv.version_number = $3`
		args = append(args, *versionNumber)
	} else {
		query += ` ORDER BY pv.version_number DESC LIMIT 1`
	}

	var version domain.PromptVersion
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&version.ID,
		&version.PromptID,
		&version.VersionNumber,
		&version.TestCount,
		&version.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("prompt version")
		}
		return nil, fmt.Errorf("failed to get prompt version: %w", err)
	}

	return &version, nil
}

// IncrementTestCount bumps the denormalized test counter on a version
func (r *PromptRepository) IncrementTestCount(ctx context.Context, versionID uuid.UUID) error {
	query := `UPDATE prompt_versions SET test_count = test_count + 1 WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, versionID)
	if err != nil {
		return fmt.Errorf("failed to increment test count: %w", err)
	}

	return nil
}
