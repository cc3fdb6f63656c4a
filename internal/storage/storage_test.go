package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/spotlight/internal/api/handlers"
	"github.com/your-org/spotlight/internal/config"
	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/internal/session"
	"github.com/your-org/spotlight/internal/storage"
)

var (
	_ session.Archiver      = (*storage.MinIOStore)(nil)
	_ session.Recorder      = (*storage.PostgresStore)(nil)
	_ handlers.HistoryStore = (*storage.PostgresStore)(nil)
)

func TestArchiveKey(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-3b7d-4c1e-9a55-0d2b7e4f8a10")
	assert.Equal(t, "archives/6f1c2a8e-3b7d-4c1e-9a55-0d2b7e4f8a10/tracking.json", storage.ArchiveKey(id))
}

// Set SPOT_TEST_DB_HOST (and optionally SPOT_TEST_DB_USER/PASSWORD/NAME)
// to run against a real Postgres.
func TestPostgresStoreRoundTrip(t *testing.T) {
	host := os.Getenv("SPOT_TEST_DB_HOST")
	if host == "" {
		t.Skip("SPOT_TEST_DB_HOST not set")
	}
	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		Name:     envOr("SPOT_TEST_DB_NAME", "spotlight"),
		User:     envOr("SPOT_TEST_DB_USER", "spotlight"),
		Password: envOr("SPOT_TEST_DB_PASSWORD", "spotlight"),
		MaxConns: 2,
	}
	ctx := context.Background()

	store, err := storage.NewPostgresStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	rec := &models.SessionRecord{ID: uuid.New(), VideoWidth: 1920, VideoHeight: 1080, Status: models.SessionStatusOpen}
	require.NoError(t, store.CreateSession(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	ev := models.LockEvent{SubjectID: "p1", Kind: models.LockAcquired, Status: models.TrackingStatusIdle, TimestampMs: 120}
	require.NoError(t, store.RecordLockEvent(ctx, rec.ID, ev))

	closedAt := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.CloseSession(ctx, rec.ID, "p1", storage.ArchiveKey(rec.ID), closedAt))

	got, err := store.GetSession(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusClosed, got.Status)
	assert.Equal(t, "p1", got.SubjectID)
	require.NotNil(t, got.ClosedAt)
	assert.WithinDuration(t, closedAt, *got.ClosedAt, time.Millisecond)

	events, err := store.ListLockEvents(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.LockAcquired, events[0].Kind)
	assert.Equal(t, rec.ID.String(), events[0].SessionID)

	list, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	_, err = store.GetSession(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	assert.ErrorIs(t, store.CloseSession(ctx, uuid.New(), "", "", closedAt), storage.ErrSessionNotFound)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
