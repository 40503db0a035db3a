package domain

import (
	"time"

	"github.com/google/uuid"
)

// TraceStatus represents the lifecycle state of a trace.
type TraceStatus string

const (
	TraceStatusActive    TraceStatus = "active"
	TraceStatusCompleted TraceStatus = "completed"
)

// SpanType represents the kind of event a span records.
type SpanType string

const (
	SpanTypeMessage  SpanType = "message"
	SpanTypeLLMCall  SpanType = "llm_call"
	SpanTypeToolCall SpanType = "tool_call"
)

// SourceUnknown is the default source label when the SDK does not send one.
const SourceUnknown = "unknown"

// Trace represents one logical execution (a conversation or run).
//
// Traces are identified by a client-supplied trace ID that is unique within
// a project; a second span carrying an already-known trace ID attaches to
// the existing trace instead of creating a new one. The model field is
// sticky: the first span that carries a model name sets it and later spans
// never overwrite it.
type Trace struct {
	ID            uuid.UUID   `json:"id"`
	ProjectID     uuid.UUID   `json:"projectId"`
	TraceID       string      `json:"traceId"`
	PromptKey     string      `json:"promptKey"`
	VersionNumber *int        `json:"versionNumber,omitempty"`
	Model         string      `json:"model,omitempty"`
	Source        string      `json:"source"`
	Status        TraceStatus `json:"status"`
	SpanCount     int         `json:"spanCount"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`

	// Populated by read endpoints, never by ingestion.
	Spans []Span `json:"spans,omitempty"`
}

// Span represents one atomic event within a trace. Spans are immutable
// once written and are deleted only as part of their trace's cascade.
type Span struct {
	ID            uuid.UUID `json:"id"`
	TraceID       string    `json:"traceId"`
	ProjectID     uuid.UUID `json:"projectId"`
	VersionNumber *int      `json:"versionNumber,omitempty"`
	Type          SpanType  `json:"type"`
	Role          string    `json:"role,omitempty"`
	Content       string    `json:"content,omitempty"`
	Model         string    `json:"model,omitempty"`
	InputTokens   int64     `json:"inputTokens,omitempty"`
	OutputTokens  int64     `json:"outputTokens,omitempty"`
	DurationMs    int64     `json:"durationMs,omitempty"`
	Metadata      string    `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SpanInput is the wire payload accepted from SDKs on the log endpoint.
type SpanInput struct {
	TraceID       string         `json:"traceId" validate:"required"`
	PromptKey     string         `json:"promptKey" validate:"required"`
	VersionNumber *int           `json:"versionNumber,omitempty"`
	Type          SpanType       `json:"type" validate:"required,oneof=message llm_call tool_call"`
	Role          string         `json:"role,omitempty"`
	Content       string         `json:"content,omitempty"`
	Model         string         `json:"model,omitempty"`
	InputTokens   int64          `json:"inputTokens,omitempty"`
	OutputTokens  int64          `json:"outputTokens,omitempty"`
	DurationMs    int64          `json:"durationMs,omitempty"`
	Source        string         `json:"source,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// IngestResult is returned to the SDK after a span is logged.
type IngestResult struct {
	SpanID  string `json:"spanId"`
	TraceID string `json:"traceId"`
}

// TraceStatusInput updates a trace's lifecycle status.
type TraceStatusInput struct {
	Status TraceStatus `json:"status" validate:"omitempty,oneof=active completed"`
}
