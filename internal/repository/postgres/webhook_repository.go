package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/pkg/database"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
)

// WebhookRepository handles webhook subscription data operations in PostgreSQL
type WebhookRepository struct {
	db *database.PostgresDB
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *database.PostgresDB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const subscriptionColumns = `id, project_id, url, secret, events, is_active, last_success_at, failure_count, metadata, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.WebhookSubscription, error) {
	var sub domain.WebhookSubscription
	var eventsJSON []byte

	err := row.Scan(
		&sub.ID,
		&sub.ProjectID,
		&sub.URL,
		&sub.Secret,
		&eventsJSON,
		&sub.IsActive,
		&sub.LastSuccessAt,
		&sub.FailureCount,
		&sub.Metadata,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(eventsJSON, &sub.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	return &sub, nil
}

// Create creates a new webhook subscription
func (r *WebhookRepository) Create(ctx context.Context, sub *domain.WebhookSubscription) error {
	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	query := `
		INSERT INTO webhook_subscriptions (id, project_id, url, secret, events, is_active, failure_count, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		sub.ID,
		sub.ProjectID,
		sub.URL,
		sub.Secret,
		eventsJSON,
		sub.IsActive,
		sub.FailureCount,
		sub.Metadata,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook subscription: %w", err)
	}

	return nil
}

// GetByID retrieves a subscription scoped to a project
func (r *WebhookRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.WebhookSubscription, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM webhook_subscriptions
		WHERE id = $1 AND project_id = $2
	`, subscriptionColumns)

	sub, err := scanSubscription(r.db.Pool.QueryRow(ctx, query, id, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("webhook subscription")
		}
		return nil, fmt.Errorf("failed to get webhook subscription: %w", err)
	}

	return sub, nil
}

// ListByProjectID retrieves all subscriptions for a project
func (r *WebhookRepository) ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]domain.WebhookSubscription, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM webhook_subscriptions
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, subscriptionColumns)

	rows, err := r.db.Pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	return subs, nil
}

// ListActiveByEvent retrieves active subscriptions registered for an event.
// Fan-out reads this set at dispatch time, so a subscription deactivated
// after the event fired is still skipped.
func (r *WebhookRepository) ListActiveByEvent(ctx context.Context, projectID uuid.UUID, event domain.EventType) ([]domain.WebhookSubscription, error) {
	eventJSON, err := json.Marshal([]domain.EventType{event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM webhook_subscriptions
		WHERE project_id = $1 AND is_active = true AND events @> $2::jsonb
		ORDER BY created_at
	`, subscriptionColumns)

	rows, err := r.db.Pool.Query(ctx, query, projectID, eventJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions by event: %w", err)
	}
	defer rows.Close()

	var subs []domain.WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	return subs, nil
}

// Update updates a subscription's mutable fields
func (r *WebhookRepository) Update(ctx context.Context, sub *domain.WebhookSubscription) error {
	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	query := `
		UPDATE webhook_subscriptions
		SET url = $3, secret = $4, events = $5, is_active = $6, metadata = $7, updated_at = NOW()
		WHERE id = $1 AND project_id = $2
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		sub.ID,
		sub.ProjectID,
		sub.URL,
		sub.Secret,
		eventsJSON,
		sub.IsActive,
		sub.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("webhook subscription")
	}

	return nil
}

// Delete deletes a subscription scoped to a project
func (r *WebhookRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	query := `DELETE FROM webhook_subscriptions WHERE id = $1 AND project_id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, id, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("webhook subscription")
	}

	return nil
}

// RecordSuccess marks a successful delivery: the consecutive failure
// count resets and the success timestamp advances.
func (r *WebhookRepository) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE webhook_subscriptions
		SET last_success_at = NOW(), failure_count = 0, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record delivery success: %w", err)
	}

	return nil
}

// RecordFailure increments the consecutive failure count after a delivery
// sequence exhausts its attempts and returns the new count
func (r *WebhookRepository) RecordFailure(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE webhook_subscriptions
		SET failure_count = failure_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failure_count
	`

	var failureCount int
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&failureCount); err != nil {
		return 0, fmt.Errorf("failed to record delivery failure: %w", err)
	}

	return failureCount, nil
}

// Deactivate turns a subscription off without deleting it
func (r *WebhookRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE webhook_subscriptions
		SET is_active = false, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate webhook subscription: %w", err)
	}

	return nil
}
