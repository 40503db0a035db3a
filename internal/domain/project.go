package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project is consumed by this subsystem as an opaque tenant scope: spans
// and subscriptions hang off a project, and the project links to the
// organization whose ledger is metered.
type Project struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID *uuid.UUID `json:"organizationId,omitempty"`
	Name           string     `json:"name"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Organization carries the billing-period bounds used to resolve the
// current usage ledger row. When the bounds are unset the UTC calendar
// month is used instead.
type Organization struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	BillingPeriodStart *time.Time `json:"billingPeriodStart,omitempty"`
	BillingPeriodEnd   *time.Time `json:"billingPeriodEnd,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// CurrentPeriod resolves the organization's active billing period,
// falling back to the calendar month when no anchor is configured.
func (o *Organization) CurrentPeriod(now time.Time) BillingPeriod {
	if o.BillingPeriodStart != nil && o.BillingPeriodEnd != nil {
		return BillingPeriod{Start: o.BillingPeriodStart.UTC(), End: o.BillingPeriodEnd.UTC()}
	}
	return CurrentCalendarPeriod(now)
}
