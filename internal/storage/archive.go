package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/spotlight/internal/models"
)

const archivePrefix = "archives/"

// ArchiveKey is the object key of a session's tracking archive.
func ArchiveKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s%s/tracking.json", archivePrefix, sessionID)
}

// PutArchive writes the archive as JSON and returns its key.
func (s *MinIOStore) PutArchive(ctx context.Context, archive models.TrackingArchive) (string, error) {
	data, err := json.Marshal(archive)
	if err != nil {
		return "", fmt.Errorf("marshal archive: %w", err)
	}
	key := ArchiveKey(archive.SessionID)
	if err := s.PutObject(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MinIOStore) GetArchive(ctx context.Context, sessionID uuid.UUID) (*models.TrackingArchive, error) {
	data, err := s.GetObject(ctx, ArchiveKey(sessionID))
	if err != nil {
		return nil, err
	}
	var archive models.TrackingArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", sessionID, err)
	}
	return &archive, nil
}

// PruneArchives deletes archives older than retention and reports how many
// were removed.
func (s *MinIOStore) PruneArchives(ctx context.Context, retention time.Duration) (int, error) {
	keys, err := s.ListObjectsBefore(ctx, archivePrefix, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if err := s.DeleteObjects(ctx, keys); err != nil {
		return 0, err
	}
	if len(keys) > 0 {
		slog.Info("pruned tracking archives", "count", len(keys), "retention", retention)
	}
	return len(keys), nil
}
