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

// ProjectRepository handles project data operations in PostgreSQL
type ProjectRepository struct {
	db *database.PostgresDB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *database.PostgresDB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, organization_id, name, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	var project domain.Project
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.OrganizationID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("project")
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListIDs returns the IDs of every project. Used by the retention sweep
// to fan out per-project cleanup tasks.
func (r *ProjectRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list project ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project ids: %w", err)
	}
	return ids, nil
}

// GetByAPIKey retrieves the project owning an API key. Keys are stored
// hashed; callers pass the SHA-256 hex digest of the presented key.
func (r *ProjectRepository) GetByAPIKey(ctx context.Context, keyHash string) (*domain.Project, error) {
	query := `
		SELECT id, organization_id, name, created_at, updated_at
		FROM projects
		WHERE api_key_hash = $1
	`

	var project domain.Project
	err := r.db.Pool.QueryRow(ctx, query, keyHash).Scan(
		&project.ID,
		&project.OrganizationID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("project")
		}
		return nil, fmt.Errorf("failed to get project by API key: %w", err)
	}

	return &project, nil
}
