// Package id generates the identifiers the ingestion and delivery paths
// mint server-side. Trace IDs are client-supplied and never minted here.
package id

import "github.com/google/uuid"

// NewSpanID generates a new span ID.
func NewSpanID() uuid.UUID {
	return uuid.New()
}

// NewDeliveryID generates the per-dispatch identifier sent to webhook
// receivers in the X-Delivery-Id header for deduplication.
func NewDeliveryID() uuid.UUID {
	return uuid.New()
}
