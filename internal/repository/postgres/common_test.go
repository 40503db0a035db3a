package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forprompt/forprompt/api/internal/config"
	"github.com/forprompt/forprompt/api/internal/pkg/database"
	"github.com/forprompt/forprompt/api/migrations"
)

// getTestDB returns a database connection for integration tests.
// Returns nil if the database is not available (skips tests).
func getTestDB(t *testing.T) *database.PostgresDB {
	// Check if we're running integration tests
	if os.Getenv("POSTGRES_TEST_HOST") == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_HOST not set")
		return nil
	}

	cfg := config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_TEST_HOST"),
		Port:     5432,
		User:     os.Getenv("POSTGRES_TEST_USER"),
		Password: os.Getenv("POSTGRES_TEST_PASS"),
		Database: os.Getenv("POSTGRES_TEST_DB"),
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}

	if cfg.Database == "" {
		cfg.Database = "test_forprompt"
	}
	if cfg.User == "" {
		cfg.User = "postgres"
	}

	db, err := database.NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to PostgreSQL: %v", err)
		return nil
	}

	if err := migrations.Apply(context.Background(), db.Pool); err != nil {
		db.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	return db
}

// seedTestOrg inserts an organization fixture and returns its ID
func seedTestOrg(t *testing.T, db *database.PostgresDB, name string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO organizations (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		id, name, now, now,
	)
	if err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}
	return id
}

// seedTestProject inserts a project fixture and returns its ID
func seedTestProject(t *testing.T, db *database.PostgresDB, name string, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO projects (id, organization_id, name, api_key_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, orgID, name, "test-hash-"+id.String(), now, now,
	)
	if err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return id
}

// cleanupOrgs removes test organizations and everything under them
func cleanupOrgs(t *testing.T, db *database.PostgresDB, names ...string) {
	ctx := context.Background()
	for _, name := range names {
		_, _ = db.Pool.Exec(ctx, "DELETE FROM usage_ledgers WHERE organization_id IN (SELECT id FROM organizations WHERE name = $1)", name)
		_, _ = db.Pool.Exec(ctx, "DELETE FROM organizations WHERE name = $1", name)
	}
}

// cleanupProjects removes test projects from the database
func cleanupProjects(t *testing.T, db *database.PostgresDB, names ...string) {
	ctx := context.Background()
	for _, name := range names {
		_, _ = db.Pool.Exec(ctx, "DELETE FROM traces WHERE project_id IN (SELECT id FROM projects WHERE name = $1)", name)
		_, _ = db.Pool.Exec(ctx, "DELETE FROM webhook_subscriptions WHERE project_id IN (SELECT id FROM projects WHERE name = $1)", name)
		_, _ = db.Pool.Exec(ctx, "DELETE FROM projects WHERE name = $1", name)
	}
}
