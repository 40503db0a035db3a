package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageMetric is a closed enumeration of the counters kept per billing
// period. Using a typed constant set rather than free-form strings means
// an unknown metric is a compile-time error, not a silently dropped row.
type UsageMetric int

const (
	MetricProductionTokens UsageMetric = iota
	MetricTraces
	MetricSpans
	MetricPromptTests
	MetricAnalysisRuns
	MetricInternalAITokens
)

// String returns the metric's wire/logging name.
func (m UsageMetric) String() string {
	switch m {
	case MetricProductionTokens:
		return "production_tokens"
	case MetricTraces:
		return "traces"
	case MetricSpans:
		return "spans"
	case MetricPromptTests:
		return "prompt_tests"
	case MetricAnalysisRuns:
		return "analysis_runs"
	case MetricInternalAITokens:
		return "internal_ai_tokens"
	default:
		return "unknown"
	}
}

// IsValid checks if the metric is a known counter.
func (m UsageMetric) IsValid() bool {
	return m >= MetricProductionTokens && m <= MetricInternalAITokens
}

// UsageLedger is one row per (organization, billing period). Exactly one
// row is current for an organization at any time; increments are additive
// and a new period supersedes the old row without deleting it.
type UsageLedger struct {
	ID               uuid.UUID `json:"id"`
	OrganizationID   uuid.UUID `json:"organizationId"`
	PeriodStart      time.Time `json:"periodStart"`
	PeriodEnd        time.Time `json:"periodEnd"`
	ProductionTokens int64     `json:"productionTokens"`
	TraceCount       int64     `json:"traceCount"`
	SpanCount        int64     `json:"spanCount"`
	PromptTestCount  int64     `json:"promptTestCount"`
	AnalysisRunCount int64     `json:"analysisRunCount"`
	InternalAITokens int64     `json:"internalAiTokens"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// BillingPeriod holds the bounds of an organization's active period.
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// CurrentCalendarPeriod returns the UTC calendar month containing now.
// Used when an organization has no explicit billing anchor.
func CurrentCalendarPeriod(now time.Time) BillingPeriod {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return BillingPeriod{Start: start, End: start.AddDate(0, 1, 0)}
}
