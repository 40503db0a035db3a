package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents a domain event a subscription can listen for.
type EventType string

const (
	EventTypeTraceCreated   EventType = "trace.created"
	EventTypeTraceCompleted EventType = "trace.completed"
	EventTypeTraceDeleted   EventType = "trace.deleted"
)

// KnownEventTypes lists every event a subscription may register for.
var KnownEventTypes = []EventType{
	EventTypeTraceCreated,
	EventTypeTraceCompleted,
	EventTypeTraceDeleted,
}

// IsValid checks if the event type is part of the known set.
func (e EventType) IsValid() bool {
	for _, known := range KnownEventTypes {
		if e == known {
			return true
		}
	}
	return false
}

// WebhookSubscription is one registered external endpoint.
//
// FailureCount increases by one each time a delivery sequence exhausts its
// attempts and resets to zero on any successful delivery. The count never
// deactivates a subscription by itself; turning one off is an explicit
// client action.
type WebhookSubscription struct {
	ID            uuid.UUID   `json:"id"`
	ProjectID     uuid.UUID   `json:"projectId"`
	URL           string      `json:"url"`
	Secret        string      `json:"secret,omitempty"`
	Events        []EventType `json:"events"`
	IsActive      bool        `json:"isActive"`
	LastSuccessAt *time.Time  `json:"lastSuccessAt,omitempty"`
	FailureCount  int64       `json:"failureCount"`
	Metadata      string      `json:"metadata,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// WebhookSubscriptionInput represents input for registering a subscription.
type WebhookSubscriptionInput struct {
	URL      string         `json:"url" validate:"required,url"`
	Secret   string         `json:"secret" validate:"required,min=16"`
	Events   []EventType    `json:"events" validate:"required,min=1,dive,event_type"`
	IsActive *bool          `json:"isActive,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WebhookSubscriptionUpdateInput represents a partial subscription update.
type WebhookSubscriptionUpdateInput struct {
	URL      *string        `json:"url,omitempty" validate:"omitempty,url"`
	Secret   *string        `json:"secret,omitempty" validate:"omitempty,min=16"`
	Events   []EventType    `json:"events,omitempty" validate:"omitempty,min=1,dive,event_type"`
	IsActive *bool          `json:"isActive,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WebhookPayload is the canonical body POSTed to a subscriber.
type WebhookPayload struct {
	Event     EventType      `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"projectId"`
	Data      map[string]any `json:"data"`
}

// DeliveryOutcome classifies the terminal result of a delivery sequence.
type DeliveryOutcome string

const (
	DeliverySucceeded DeliveryOutcome = "succeeded"
	DeliveryFailed    DeliveryOutcome = "failed"
)

// DeliveryResult records one delivery attempt sequence. It is transient:
// it exists only for the duration of a dispatch and is never persisted.
type DeliveryResult struct {
	DeliveryID     uuid.UUID       `json:"deliveryId"`
	SubscriptionID uuid.UUID       `json:"subscriptionId"`
	Event          EventType       `json:"event"`
	Outcome        DeliveryOutcome `json:"outcome"`
	Attempts       int             `json:"attempts"`
	StatusCode     int             `json:"statusCode,omitempty"`
	Error          string          `json:"error,omitempty"`
	Duration       time.Duration   `json:"-"`
}
