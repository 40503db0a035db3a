package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
)

// WebhookRepository defines the interface for webhook subscription persistence.
// All methods must be safe for concurrent use.
type WebhookRepository interface {
	// Create persists a new subscription.
	Create(ctx context.Context, sub *domain.WebhookSubscription) error
	// GetByID retrieves a subscription scoped to a project.
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.WebhookSubscription, error)
	// ListByProjectID retrieves all subscriptions for a project.
	ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]domain.WebhookSubscription, error)
	// ListActiveByEvent retrieves active subscriptions registered for an event.
	ListActiveByEvent(ctx context.Context, projectID uuid.UUID, event domain.EventType) ([]domain.WebhookSubscription, error)
	// Update rewrites a subscription's mutable fields.
	Update(ctx context.Context, sub *domain.WebhookSubscription) error
	// Delete removes a subscription scoped to a project.
	Delete(ctx context.Context, projectID, id uuid.UUID) error
	// RecordSuccess resets the failure count after a successful delivery.
	RecordSuccess(ctx context.Context, id uuid.UUID) error
	// RecordFailure bumps the failure count after an exhausted sequence
	// and returns the new consecutive count.
	RecordFailure(ctx context.Context, id uuid.UUID) (int, error)
}

// Deliverer runs a single delivery sequence against a subscription.
type Deliverer interface {
	Deliver(ctx context.Context, sub *domain.WebhookSubscription, payload *domain.WebhookPayload) (*domain.DeliveryResult, error)
}

// WebhookService manages webhook subscriptions and fans events out to them.
//
// Subscriptions are project scoped. Registering one validates the event
// list against the known event set and rejects unknown names outright, so
// a typo surfaces at registration time rather than as a subscription that
// never fires.
//
// Dispatch resolves the active subscriber set at dispatch time, runs one
// delivery sequence per subscriber concurrently, and records per-subscriber
// health. One subscriber's failure never affects another's delivery, and a
// failing subscription stays active until a client turns it off.
type WebhookService struct {
	logger    *zap.Logger
	repo      WebhookRepository
	deliverer Deliverer
}

// NewWebhookService creates a new webhook service
func NewWebhookService(logger *zap.Logger, repo WebhookRepository, deliverer Deliverer) *WebhookService {
	return &WebhookService{
		logger:    logger.Named("webhook"),
		repo:      repo,
		deliverer: deliverer,
	}
}

// Register creates a new subscription for a project.
func (s *WebhookService) Register(ctx context.Context, projectID uuid.UUID, input *domain.WebhookSubscriptionInput) (*domain.WebhookSubscription, error) {
	if err := validateEvents(input.Events); err != nil {
		return nil, err
	}

	metadata := "{}"
	if input.Metadata != nil {
		metadataBytes, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(metadataBytes)
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := time.Now()
	sub := &domain.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       input.URL,
		Secret:    input.Secret,
		Events:    input.Events,
		IsActive:  isActive,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to register webhook: %w", err)
	}

	return sub, nil
}

// Get retrieves a subscription scoped to a project
func (s *WebhookService) Get(ctx context.Context, projectID, id uuid.UUID) (*domain.WebhookSubscription, error) {
	return s.repo.GetByID(ctx, projectID, id)
}

// List retrieves all subscriptions for a project
func (s *WebhookService) List(ctx context.Context, projectID uuid.UUID) ([]domain.WebhookSubscription, error) {
	return s.repo.ListByProjectID(ctx, projectID)
}

// Update applies a partial update to a subscription.
func (s *WebhookService) Update(ctx context.Context, projectID, id uuid.UUID, input *domain.WebhookSubscriptionUpdateInput) (*domain.WebhookSubscription, error) {
	sub, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return nil, err
	}

	if input.URL != nil {
		sub.URL = *input.URL
	}
	if input.Secret != nil {
		sub.Secret = *input.Secret
	}
	if len(input.Events) > 0 {
		if err := validateEvents(input.Events); err != nil {
			return nil, err
		}
		sub.Events = input.Events
	}
	if input.IsActive != nil {
		sub.IsActive = *input.IsActive
	}
	if input.Metadata != nil {
		metadataBytes, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		sub.Metadata = string(metadataBytes)
	}

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Delete removes a subscription
func (s *WebhookService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	return s.repo.Delete(ctx, projectID, id)
}

// Dispatch fans an event out to every active subscription registered for
// it. Delivery sequences run concurrently and the call returns once all of
// them have reached a terminal outcome. Dispatch never returns a delivery
// failure: subscriber health is recorded per subscription instead.
func (s *WebhookService) Dispatch(ctx context.Context, projectID uuid.UUID, event domain.EventType, data map[string]any) error {
	subs, err := s.repo.ListActiveByEvent(ctx, projectID, event)
	if err != nil {
		return fmt.Errorf("failed to resolve subscribers: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload := &domain.WebhookPayload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID.String(),
		Data:      data,
	}

	// Each sequence runs to its own completion, bounded only by the
	// per-attempt timeouts. The dispatching caller's deadline must not cut
	// a later attempt short or leave health recording with a dead context.
	deliveryCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := range subs {
		sub := subs[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deliverOne(deliveryCtx, &sub, payload)
		}()
	}
	wg.Wait()

	return nil
}

// deliverOne runs a delivery sequence and records the subscription's health
func (s *WebhookService) deliverOne(ctx context.Context, sub *domain.WebhookSubscription, payload *domain.WebhookPayload) {
	result, err := s.deliverer.Deliver(ctx, sub, payload)
	if err != nil {
		s.logger.Error("webhook delivery could not start",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("event", string(payload.Event)),
			zap.Error(err),
		)
		return
	}

	if result.Outcome == domain.DeliverySucceeded {
		if err := s.repo.RecordSuccess(ctx, sub.ID); err != nil {
			s.logger.Error("failed to record delivery success",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
		}
		return
	}

	failureCount, err := s.repo.RecordFailure(ctx, sub.ID)
	if err != nil {
		s.logger.Error("failed to record delivery failure",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
		return
	}

	s.logger.Warn("webhook delivery sequence exhausted",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("event", string(payload.Event)),
		zap.Int("consecutive_failures", failureCount),
	)
}

// Test sends a synthetic event through the full delivery path so an
// integrator can verify their endpoint and signature handling.
func (s *WebhookService) Test(ctx context.Context, projectID, id uuid.UUID) (*domain.DeliveryResult, error) {
	sub, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return nil, err
	}

	payload := &domain.WebhookPayload{
		Event:     domain.EventTypeTraceCreated,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID.String(),
		Data: map[string]any{
			"test":    true,
			"message": "This is a test delivery from ForPrompt",
		},
	}

	return s.deliverer.Deliver(ctx, sub, payload)
}

func validateEvents(events []domain.EventType) error {
	for _, event := range events {
		if !event.IsValid() {
			return apperrors.Validation(fmt.Sprintf("unknown event type: %s", event))
		}
	}
	return nil
}
