package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forprompt/forprompt/api/internal/domain"
	apperrors "github.com/forprompt/forprompt/api/internal/pkg/errors"
)

// createTestSubscription creates a subscription with test data
func createTestSubscription(projectID uuid.UUID, events ...domain.EventType) *domain.WebhookSubscription {
	now := time.Now()
	if len(events) == 0 {
		events = []domain.EventType{domain.EventTypeTraceCreated}
	}
	return &domain.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       "https://example.com/hooks/forprompt",
		Secret:    "whsec_0123456789abcdef",
		Events:    events,
		IsActive:  true,
		Metadata:  "{}",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWebhookRepository_CreateAndGet(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewWebhookRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Webhook Create"
	projectName := "Test Project for Webhook Create"

	cleanupProjects(t, db, projectName)
	cleanupOrgs(t, db, orgName)
	defer cleanupProjects(t, db, projectName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	projectID := seedTestProject(t, db, projectName, orgID)

	sub := createTestSubscription(projectID, domain.EventTypeTraceCreated, domain.EventTypeTraceCompleted)
	require.NoError(t, repo.Create(ctx, sub))

	fetched, err := repo.GetByID(ctx, projectID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.URL, fetched.URL)
	assert.ElementsMatch(t, sub.Events, fetched.Events)
	assert.True(t, fetched.IsActive)
	assert.Nil(t, fetched.LastSuccessAt)
}

func TestWebhookRepository_GetByID_WrongProject(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewWebhookRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Webhook Scope"
	projectName := "Test Project for Webhook Scope"

	cleanupProjects(t, db, projectName)
	cleanupOrgs(t, db, orgName)
	defer cleanupProjects(t, db, projectName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	projectID := seedTestProject(t, db, projectName, orgID)

	sub := createTestSubscription(projectID)
	require.NoError(t, repo.Create(ctx, sub))

	// A different project must not see the subscription
	_, err := repo.GetByID(ctx, uuid.New(), sub.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestWebhookRepository_ListActiveByEvent(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewWebhookRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Webhook Fanout"
	projectName := "Test Project for Webhook Fanout"

	cleanupProjects(t, db, projectName)
	cleanupOrgs(t, db, orgName)
	defer cleanupProjects(t, db, projectName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	projectID := seedTestProject(t, db, projectName, orgID)

	created := createTestSubscription(projectID, domain.EventTypeTraceCreated)
	completed := createTestSubscription(projectID, domain.EventTypeTraceCompleted)
	inactive := createTestSubscription(projectID, domain.EventTypeTraceCreated)
	inactive.IsActive = false

	require.NoError(t, repo.Create(ctx, created))
	require.NoError(t, repo.Create(ctx, completed))
	require.NoError(t, repo.Create(ctx, inactive))

	subs, err := repo.ListActiveByEvent(ctx, projectID, domain.EventTypeTraceCreated)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, created.ID, subs[0].ID)
}

func TestWebhookRepository_Update(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewWebhookRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Webhook Update"
	projectName := "Test Project for Webhook Update"

	cleanupProjects(t, db, projectName)
	cleanupOrgs(t, db, orgName)
	defer cleanupProjects(t, db, projectName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	projectID := seedTestProject(t, db, projectName, orgID)

	sub := createTestSubscription(projectID)
	require.NoError(t, repo.Create(ctx, sub))

	sub.URL = "https://example.com/hooks/v2"
	sub.IsActive = false
	sub.Events = []domain.EventType{domain.EventTypeTraceDeleted}
	require.NoError(t, repo.Update(ctx, sub))

	fetched, err := repo.GetByID(ctx, projectID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hooks/v2", fetched.URL)
	assert.False(t, fetched.IsActive)
	assert.Equal(t, []domain.EventType{domain.EventTypeTraceDeleted}, fetched.Events)
}

func TestWebhookRepository_RecordSuccessAndFailure(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewWebhookRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Webhook Health"
	projectName := "Test Project for Webhook Health"

	cleanupProjects(t, db, projectName)
	cleanupOrgs(t, db, orgName)
	defer cleanupProjects(t, db, projectName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	projectID := seedTestProject(t, db, projectName, orgID)

	sub := createTestSubscription(projectID)
	require.NoError(t, repo.Create(ctx, sub))

	count, err := repo.RecordFailure(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.RecordFailure(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	fetched, err := repo.GetByID(ctx, projectID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetched.FailureCount)

	// Deactivation flips the subscription off without deleting it
	require.NoError(t, repo.Deactivate(ctx, sub.ID))
	fetched, err = repo.GetByID(ctx, projectID, sub.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)

	// A success resets the consecutive failure count
	require.NoError(t, repo.RecordSuccess(ctx, sub.ID))

	fetched, err = repo.GetByID(ctx, projectID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fetched.FailureCount)
	assert.NotNil(t, fetched.LastSuccessAt)
}

func TestWebhookRepository_Delete(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewWebhookRepository(db)
	ctx := context.Background()

	orgName := "Test Org for Webhook Delete"
	projectName := "Test Project for Webhook Delete"

	cleanupProjects(t, db, projectName)
	cleanupOrgs(t, db, orgName)
	defer cleanupProjects(t, db, projectName)
	defer cleanupOrgs(t, db, orgName)

	orgID := seedTestOrg(t, db, orgName)
	projectID := seedTestProject(t, db, projectName, orgID)

	sub := createTestSubscription(projectID)
	require.NoError(t, repo.Create(ctx, sub))

	require.NoError(t, repo.Delete(ctx, projectID, sub.ID))

	_, err := repo.GetByID(ctx, projectID, sub.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	err = repo.Delete(ctx, projectID, sub.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
