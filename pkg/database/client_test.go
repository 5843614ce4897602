package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient connects to PostgreSQL and applies the embedded migrations.
// In CI (CI_DATABASE_URL set) it uses the external service container; locally
// it spins up a testcontainer.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	client, err := NewClient(ctx, Config{
		URL:             connStr,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMigrationsCreateSchema(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	client := newTestClient(t)
	ctx := context.Background()

	for _, table := range []string{
		"people", "projects", "ideas", "tasks", "events", "calendar_events",
		"inbox_log", "agent_configs", "system_settings", "language_mappings",
		"api_keys", "human_requests", "schedules", "scheduled_jobs",
		"sync_config", "sync_log", "report_channels", "telegram_config",
		"notification_config",
	} {
		var exists bool
		err := client.DB().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}
}

func TestMigrationsSeedDefaults(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	client := newTestClient(t)
	ctx := context.Background()

	var tz string
	err := client.DB().QueryRowContext(ctx,
		`SELECT value::text FROM system_settings WHERE key = 'timezone'`).Scan(&tz)
	require.NoError(t, err)
	assert.Contains(t, tz, "Europe/Berlin")

	var jobs int
	err = client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_jobs`).Scan(&jobs)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, jobs, 4)

	var stopwords int
	err = client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM language_mappings WHERE mapping_type = 'stopwords'`).Scan(&stopwords)
	require.NoError(t, err)
	assert.Positive(t, stopwords)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	client := newTestClient(t)
	ctx := context.Background()

	// A second client against the same database must not re-run anything.
	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		t.Skip("needs a shared database to verify, covered in CI")
	}
	second, err := NewClient(ctx, Config{URL: connStr, MaxOpenConns: 2, MaxIdleConns: 1})
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	_ = client
}
