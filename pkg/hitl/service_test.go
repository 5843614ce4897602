package hitl

import (
	"context"
	"errors"
	"log/slog"
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
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

func newTestService(t *testing.T) *Service {
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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(store.NewFromDB(client.DB()), logger)
}

func TestCreateAndRespond(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "pipeline", models.RequestTypeChoice,
		"Welche Aufgabe meinst du?",
		[]string{"Zahnarzt (tasks)", "Zahnarzt Kinder (tasks)"},
		map[string]any{"text": "zahnarzt erledigt"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Len(t, req.Options, 2)
	assert.Equal(t, "zahnarzt erledigt", req.Context["text"])

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	resolved, err := svc.Respond(ctx, req.ID, models.RequestAnswered, "Zahnarzt (tasks)")
	require.NoError(t, err)
	assert.Equal(t, models.RequestAnswered, resolved.Status)
	assert.Equal(t, "Zahnarzt (tasks)", resolved.Response)
	assert.NotNil(t, resolved.AnsweredAt)

	// A second response hits a terminal request.
	_, err = svc.Respond(ctx, req.ID, models.RequestApproved, "ja")
	assert.True(t, errors.Is(err, services.ErrConflict))

	pending, err = svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRespondValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Respond(ctx, 1, "maybe", "x")
	assert.True(t, services.IsValidationError(err))

	_, err = svc.Respond(ctx, 99999, models.RequestApproved, "ja")
	assert.True(t, errors.Is(err, services.ErrNotFound))

	_, err = svc.Create(ctx, "pipeline", models.RequestTypeApproval, "", nil, nil)
	assert.True(t, services.IsValidationError(err))
}

func TestCancel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "pipeline", models.RequestTypeApproval, "Wirklich löschen?", nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, req.ID))
	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCancelled, got.Status)

	assert.True(t, errors.Is(svc.Cancel(ctx, req.ID), services.ErrConflict))
}

func TestWaitTimesOut(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "pipeline", models.RequestTypeApproval, "Freigeben?", nil, nil)
	require.NoError(t, err)

	got, err := svc.Wait(ctx, req.ID, 100*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, models.RequestTimeout, got.Status)
}

func TestWaitReturnsAnswer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "pipeline", models.RequestTypeApproval, "Freigeben?", nil, nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(500 * time.Millisecond)
		_, _ = svc.Respond(context.Background(), req.ID, models.RequestApproved, "ja")
	}()

	got, err := svc.Wait(ctx, req.ID, 30*time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, got.Status)
}
