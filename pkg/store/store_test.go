package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/secondbrainhq/secondbrain/pkg/database"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// newTestGateway brings up a migrated database. In CI it connects to the
// external service container; locally it starts a testcontainer.
func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
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

	client, err := database.NewClient(ctx, database.Config{
		URL:          connStr,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewFromDB(client.DB())
}

func TestSettingsRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	settings := NewSettings(g)
	ctx := context.Background()

	require.NoError(t, settings.SetSetting(ctx, "confidence_threshold", 0.5, "test override"))
	raw, err := settings.GetSetting(ctx, "confidence_threshold")
	require.NoError(t, err)
	assert.Equal(t, "0.5", string(raw))

	_, err = settings.GetSetting(ctx, "no_such_setting")
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestSettingsAPIKeyMissing(t *testing.T) {
	g := newTestGateway(t)
	settings := NewSettings(g)

	_, err := settings.APIKey(context.Background(), "anthropic")
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestSettingsSeededMappings(t *testing.T) {
	g := newTestGateway(t)
	settings := NewSettings(g)

	stops, err := settings.Mappings(context.Background(), "stopwords")
	require.NoError(t, err)
	assert.NotEmpty(t, stops)
}

func TestEntitiesInsertAndSearch(t *testing.T) {
	g := newTestGateway(t)
	entities := NewEntities(g)
	ctx := context.Background()

	var taskID int64
	err := g.Tx(ctx, func(tx *Tx) error {
		var txErr error
		taskID, txErr = entities.Insert(ctx, tx, "tasks", map[string]any{
			"title":    "Steuererklärung abgeben",
			"status":   "inbox",
			"priority": 2,
			"notes":    "Belege im Ordner Finanzen",
		})
		return txErr
	})
	require.NoError(t, err)
	require.Positive(t, taskID)

	// Name substring scores 0.8.
	matches, err := entities.Search(ctx, []string{"steuererklärung"}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "tasks", matches[0].Table)
	assert.Equal(t, taskID, matches[0].ID)
	assert.InDelta(t, 0.8, matches[0].Score, 0.001)

	// Notes substring scores 0.5.
	matches, err = entities.Search(ctx, []string{"finanzen"}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.InDelta(t, 0.5, matches[0].Score, 0.001)

	// Exact name match scores 1.0.
	matches, err = entities.Search(ctx, []string{"steuererklärung abgeben"}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)
}

// Search walks every entity table, so a row in each must come back without
// the scan erroring out on any table's column names.
func TestEntitiesSearchCoversAllTables(t *testing.T) {
	g := newTestGateway(t)
	entities := NewEntities(g)
	ctx := context.Background()

	rows := map[string]map[string]any{
		"projects":        {"name": "Umzug Hamburg", "status": "active"},
		"tasks":           {"title": "Umzugskartons kaufen", "status": "inbox"},
		"people":          {"name": "Umzugshelfer Jonas"},
		"ideas":           {"name": "Umzugscheckliste App", "status": "inbox"},
		"events":          {"title": "Umzugstag", "notes": "Transporter um 8"},
		"calendar_events": {"title": "Umzug Besichtigung", "start_time": "2025-03-20T10:00:00Z"},
	}
	err := g.Tx(ctx, func(tx *Tx) error {
		for table, data := range rows {
			if _, txErr := entities.Insert(ctx, tx, table, data); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	require.NoError(t, err)

	matches, err := entities.Search(ctx, []string{"umzug"}, 20)
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, m := range matches {
		found[m.Table] = true
	}
	for table := range rows {
		assert.Truef(t, found[table], "no match from %s", table)
	}
}

func TestEntitiesUpdateAndSoftDelete(t *testing.T) {
	g := newTestGateway(t)
	entities := NewEntities(g)
	ctx := context.Background()

	var id int64
	err := g.Tx(ctx, func(tx *Tx) error {
		var txErr error
		id, txErr = entities.Insert(ctx, tx, "tasks", map[string]any{
			"title": "Reifen wechseln", "status": "inbox", "priority": 2,
		})
		return txErr
	})
	require.NoError(t, err)

	err = g.Tx(ctx, func(tx *Tx) error {
		return entities.Update(ctx, tx, "tasks", id, map[string]any{"priority": 1})
	})
	require.NoError(t, err)

	row, err := entities.Get(ctx, "tasks", id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, asInt64(row["priority"]))

	err = g.Tx(ctx, func(tx *Tx) error {
		return entities.MarkDone(ctx, tx, "tasks", id)
	})
	require.NoError(t, err)

	err = g.Tx(ctx, func(tx *Tx) error {
		return entities.SoftDelete(ctx, tx, "tasks", id)
	})
	require.NoError(t, err)

	_, err = entities.Get(ctx, "tasks", id)
	assert.True(t, errors.Is(err, services.ErrNotFound))

	// Deleting twice reports not found.
	err = g.Tx(ctx, func(tx *Tx) error {
		return entities.SoftDelete(ctx, tx, "tasks", id)
	})
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestEntitiesRejectsUnknownIdentifiers(t *testing.T) {
	g := newTestGateway(t)
	entities := NewEntities(g)
	ctx := context.Background()

	err := g.Tx(ctx, func(tx *Tx) error {
		_, txErr := entities.Insert(ctx, tx, "pg_catalog.pg_tables", map[string]any{"x": 1})
		return txErr
	})
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	err = g.Tx(ctx, func(tx *Tx) error {
		_, txErr := entities.Insert(ctx, tx, "tasks", map[string]any{"title; DROP TABLE tasks": "x"})
		return txErr
	})
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}

func TestContactsSyncLifecycle(t *testing.T) {
	g := newTestGateway(t)
	contacts := NewContacts(g)
	ctx := context.Background()

	id, err := contacts.Insert(ctx, &models.Contact{
		Name:      "Anna Müller",
		FirstName: "Anna",
		LastName:  "Müller",
		Phone:     "+49 170 1234567",
		ImportantDates: []models.ImportantDate{
			{Type: "birthday", Date: "1988-04-02"},
		},
	})
	require.NoError(t, err)

	// New contacts default to pending and show up as pushable everywhere.
	pending, err := contacts.PendingForProvider(ctx, "google")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.SyncStatusPending, pending[0].SyncStatus)
	assert.Equal(t, []models.ImportantDate{{Type: "birthday", Date: "1988-04-02"}}, pending[0].ImportantDates)

	found, err := contacts.FindByName(ctx, "anna müller")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)

	require.NoError(t, contacts.MarkSynced(ctx, id, "google", "people/c42", "etag-1"))
	byUID, err := contacts.FindByProviderUID(ctx, "google", "people/c42")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, byUID.SyncStatus)
	assert.Equal(t, "etag-1", byUID.SyncEtag)

	pending, err = contacts.PendingForProvider(ctx, "google")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A remote deletion soft-deletes the local row.
	deleted, err := contacts.SoftDeleteByProviderUID(ctx, "google", "people/c42")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = contacts.Get(ctx, id)
	assert.True(t, errors.Is(err, services.ErrNotFound))

	// The tombstone still lists for remote cleanup until the UID clears.
	tombstones, err := contacts.DeletedForProvider(ctx, "google")
	require.NoError(t, err)
	require.Len(t, tombstones, 1)
	require.NoError(t, contacts.ClearProviderUID(ctx, tombstones[0].ID, "google"))
	tombstones, err = contacts.DeletedForProvider(ctx, "google")
	require.NoError(t, err)
	assert.Empty(t, tombstones)

	// Unknown UIDs from the provider are not an error.
	deleted, err = contacts.SoftDeleteByProviderUID(ctx, "google", "people/unknown")
	require.NoError(t, err)
	assert.False(t, deleted)
}

// A contact created inside a failing transaction must vanish with it.
func TestContactsInsertTxRollsBack(t *testing.T) {
	g := newTestGateway(t)
	contacts := NewContacts(g)
	ctx := context.Background()

	boom := errors.New("boom")
	err := g.Tx(ctx, func(tx *Tx) error {
		id, txErr := contacts.InsertTx(ctx, tx, &models.Contact{Name: "Flüchtiger Kontakt"})
		require.NoError(t, txErr)
		require.Positive(t, id)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = contacts.FindByName(ctx, "Flüchtiger Kontakt")
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestContactsUnknownProvider(t *testing.T) {
	g := newTestGateway(t)
	contacts := NewContacts(g)

	_, err := contacts.FindByProviderUID(context.Background(), "fastmail", "x")
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}
