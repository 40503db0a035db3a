package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
	"github.com/forprompt/forprompt/api/internal/pkg/metrics"
)

// UsageRepository defines the interface for usage ledger persistence.
type UsageRepository interface {
	// Increment adds delta to one ledger counter, creating the period row
	// on first write.
	Increment(ctx context.Context, orgID uuid.UUID, period domain.BillingPeriod, metric domain.UsageMetric, delta int64) error
	// GetCurrent retrieves the ledger row for a period.
	GetCurrent(ctx context.Context, orgID uuid.UUID, period domain.BillingPeriod) (*domain.UsageLedger, error)
	// ListByOrganization retrieves all ledger rows, newest period first.
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.UsageLedger, error)
}

// ProjectRepository defines the interface for project lookups.
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	GetByAPIKey(ctx context.Context, keyHash string) (*domain.Project, error)
}

// OrgRepository defines the interface for organization lookups.
type OrgRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
}

// UsageService meters billable activity into per-organization ledgers.
//
// Every increment resolves the owning organization and its current billing
// period, then folds the delta into that period's row. A project without an
// organization is unbillable and its activity is skipped silently; that is
// a data setup problem, not an ingestion error.
type UsageService struct {
	logger      *zap.Logger
	usageRepo   UsageRepository
	projectRepo ProjectRepository
	orgRepo     OrgRepository
	// now is replaceable in tests to pin the billing period
	now func() time.Time
}

// NewUsageService creates a new usage service
func NewUsageService(logger *zap.Logger, usageRepo UsageRepository, projectRepo ProjectRepository, orgRepo OrgRepository) *UsageService {
	return &UsageService{
		logger:      logger.Named("usage"),
		usageRepo:   usageRepo,
		projectRepo: projectRepo,
		orgRepo:     orgRepo,
		now:         time.Now,
	}
}

// Meter adds delta to one of the project's organization counters for the
// current billing period. A zero or negative delta is a no-op: the ledger
// is append-only and counters never decrease.
func (s *UsageService) Meter(ctx context.Context, projectID uuid.UUID, metric domain.UsageMetric, delta int64) error {
	if delta <= 0 {
		return nil
	}
	if !metric.IsValid() {
		return fmt.Errorf("invalid usage metric: %d", metric)
	}

	org, err := s.resolveOrg(ctx, projectID)
	if err != nil {
		metrics.RecordUsageMeterError(metric.String())
		return err
	}
	if org == nil {
		// Project not linked to an organization; nothing to bill
		return nil
	}

	period := org.CurrentPeriod(s.now())
	if err := s.usageRepo.Increment(ctx, org.ID, period, metric, delta); err != nil {
		metrics.RecordUsageMeterError(metric.String())
		return err
	}

	return nil
}

// GetCurrentUsage returns the ledger for the project's organization in the
// current billing period. When no activity has been recorded yet, a zeroed
// ledger with the period bounds is returned instead of an error.
func (s *UsageService) GetCurrentUsage(ctx context.Context, projectID uuid.UUID) (*domain.UsageLedger, error) {
	org, err := s.resolveOrg(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, apperrors.NotFound("organization")
	}

	period := org.CurrentPeriod(s.now())
	ledger, err := s.usageRepo.GetCurrent(ctx, org.ID, period)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &domain.UsageLedger{
				OrganizationID: org.ID,
				PeriodStart:    period.Start,
				PeriodEnd:      period.End,
			}, nil
		}
		return nil, err
	}

	return ledger, nil
}

// ListUsageHistory returns all ledger rows for the project's organization
func (s *UsageService) ListUsageHistory(ctx context.Context, projectID uuid.UUID) ([]domain.UsageLedger, error) {
	org, err := s.resolveOrg(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, apperrors.NotFound("organization")
	}

	return s.usageRepo.ListByOrganization(ctx, org.ID)
}

// resolveOrg maps a project to its billing organization. A nil organization
// with nil error means the project has no organization link.
func (s *UsageService) resolveOrg(ctx context.Context, projectID uuid.UUID) (*domain.Organization, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project: %w", err)
	}
	if project.OrganizationID == nil {
		s.logger.Warn("project has no organization, skipping usage",
			zap.String("project_id", projectID.String()),
		)
		return nil, nil
	}

	org, err := s.orgRepo.GetByID(ctx, *project.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organization: %w", err)
	}

	return org, nil
}
