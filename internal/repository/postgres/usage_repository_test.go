package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forprompt/forprompt/api/internal/domain"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
)

func TestUsageRepository_Increment_CreatesRow(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewUsageRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Usage Create"
	cleanupOrgs(t, db, orgName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	period := domain.CurrentCalendarPeriod(time.Now())

	err := repo.Increment(ctx, orgID, period, domain.MetricTraces, 1)
	require.NoError(t, err)

	ledger, err := repo.GetCurrent(ctx, orgID, period)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ledger.TraceCount)
	assert.Equal(t, int64(0), ledger.SpanCount)
	assert.True(t, period.Start.Equal(ledger.PeriodStart))
}

func TestUsageRepository_Increment_Accumulates(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewUsageRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Usage Accumulate"
	cleanupOrgs(t, db, orgName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	period := domain.CurrentCalendarPeriod(time.Now())

	require.NoError(t, repo.Increment(ctx, orgID, period, domain.MetricProductionTokens, 100))
	require.NoError(t, repo.Increment(ctx, orgID, period, domain.MetricProductionTokens, 250))
	require.NoError(t, repo.Increment(ctx, orgID, period, domain.MetricSpans, 2))
	require.NoError(t, repo.Increment(ctx, orgID, period, domain.MetricPromptTests, 3))

	ledger, err := repo.GetCurrent(ctx, orgID, period)
	require.NoError(t, err)
	assert.Equal(t, int64(350), ledger.ProductionTokens)
	assert.Equal(t, int64(2), ledger.SpanCount)
	assert.Equal(t, int64(3), ledger.PromptTestCount)
}

func TestUsageRepository_Increment_Concurrent(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewUsageRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Usage Concurrent"
	cleanupOrgs(t, db, orgName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	period := domain.CurrentCalendarPeriod(time.Now())

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Increment(ctx, orgID, period, domain.MetricSpans, 1)
		}()
	}
	wg.Wait()

	ledger, err := repo.GetCurrent(ctx, orgID, period)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), ledger.SpanCount)
}

func TestUsageRepository_GetCurrent_NotFound(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewUsageRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Usage Missing"
	cleanupOrgs(t, db, orgName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)

	_, err := repo.GetCurrent(ctx, orgID, domain.CurrentCalendarPeriod(time.Now()))
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUsageRepository_NewPeriodKeepsOldRow(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewUsageRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Usage Rollover"
	cleanupOrgs(t, db, orgName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)

	now := time.Now()
	previous := domain.CurrentCalendarPeriod(now.AddDate(0, -1, 0))
	current := domain.CurrentCalendarPeriod(now)

	require.NoError(t, repo.Increment(ctx, orgID, previous, domain.MetricTraces, 5))
	require.NoError(t, repo.Increment(ctx, orgID, current, domain.MetricTraces, 1))

	ledgers, err := repo.ListByOrganization(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.Equal(t, int64(1), ledgers[0].TraceCount)
	assert.Equal(t, int64(5), ledgers[1].TraceCount)
}
