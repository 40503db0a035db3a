package migrations

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_HOST not set")
	}

	user := os.Getenv("POSTGRES_TEST_USER")
	if user == "" {
		user = "postgres"
	}
	db := os.Getenv("POSTGRES_TEST_DB")
	if db == "" {
		db = "test_forprompt"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable",
		user, os.Getenv("POSTGRES_TEST_PASS"), host, db)

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect: %v", err)
	}
	return pool
}

func TestApply(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()
	ctx := context.Background()

	require.NoError(t, Apply(ctx, pool))

	// Applying twice is a no-op
	require.NoError(t, Apply(ctx, pool))

	// Every embedded migration is recorded
	var applied int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	require.GreaterOrEqual(t, applied, 5)

	// Schema is usable
	for _, table := range []string{"organizations", "projects", "traces", "spans", "usage_ledgers", "webhook_subscriptions"} {
		var exists bool
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists))
		require.True(t, exists, "table %s missing", table)
	}
}

func TestApplyRequiresPool(t *testing.T) {
	require.Error(t, Apply(context.Background(), nil))
}
