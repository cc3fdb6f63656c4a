package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/spotlight/internal/config"
	"github.com/your-org/spotlight/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           UUID PRIMARY KEY,
	video_width  INTEGER NOT NULL DEFAULT 0,
	video_height INTEGER NOT NULL DEFAULT 0,
	subject_id   TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	archive_key  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	closed_at    TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS lock_events (
	id           BIGSERIAL PRIMARY KEY,
	session_id   UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	subject_id   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT '',
	timestamp_ms DOUBLE PRECISION NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS lock_events_session_idx ON lock_events (session_id, id);
`

var ErrSessionNotFound = errors.New("session not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the session tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, rec *models.SessionRecord) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, video_width, video_height, subject_id, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		rec.ID, rec.VideoWidth, rec.VideoHeight, rec.SubjectID, rec.Status,
	).Scan(&rec.CreatedAt)
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, video_width, video_height, subject_id, status, archive_key, created_at, closed_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.VideoWidth, &rec.VideoHeight, &rec.SubjectID, &rec.Status,
		&rec.ArchiveKey, &rec.CreatedAt, &rec.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

// ListSessions returns the most recent sessions first.
func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_width, video_height, subject_id, status, archive_key, created_at, closed_at
		 FROM sessions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.VideoWidth, &rec.VideoHeight, &rec.SubjectID, &rec.Status,
			&rec.ArchiveKey, &rec.CreatedAt, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CloseSession(ctx context.Context, id uuid.UUID, subjectID, archiveKey string, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, subject_id = $2, archive_key = $3, closed_at = $4 WHERE id = $5`,
		models.SessionStatusClosed, subjectID, archiveKey, closedAt, id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// --- Lock events ---

func (s *PostgresStore) RecordLockEvent(ctx context.Context, id uuid.UUID, ev models.LockEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lock_events (session_id, subject_id, kind, status, timestamp_ms)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, ev.SubjectID, ev.Kind, ev.Status, ev.TimestampMs)
	if err != nil {
		return fmt.Errorf("record lock event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLockEvents(ctx context.Context, id uuid.UUID) ([]models.LockEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_id, kind, status, timestamp_ms FROM lock_events
		 WHERE session_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list lock events: %w", err)
	}
	defer rows.Close()

	var out []models.LockEvent
	for rows.Next() {
		ev := models.LockEvent{SessionID: id.String()}
		if err := rows.Scan(&ev.SubjectID, &ev.Kind, &ev.Status, &ev.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan lock event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
