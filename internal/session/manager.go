package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/spotlight/internal/config"
	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/internal/observability"
	"github.com/your-org/spotlight/internal/vision"
	"github.com/your-org/spotlight/pkg/dto"
)

// Archiver stores finished session archives. *storage.MinIOStore satisfies it.
type Archiver interface {
	PutArchive(ctx context.Context, archive models.TrackingArchive) (string, error)
	GetArchive(ctx context.Context, sessionID uuid.UUID) (*models.TrackingArchive, error)
	PruneArchives(ctx context.Context, retention time.Duration) (int, error)
}

// Recorder persists session metadata. *storage.PostgresStore satisfies it.
type Recorder interface {
	CreateSession(ctx context.Context, rec *models.SessionRecord) error
	CloseSession(ctx context.Context, id uuid.UUID, subjectID, archiveKey string, closedAt time.Time) error
	RecordLockEvent(ctx context.Context, id uuid.UUID, ev models.LockEvent) error
}

// Notifier receives lock and status events as they happen.
type Notifier interface {
	NotifyLockEvent(ctx context.Context, sessionID uuid.UUID, ev models.LockEvent)
}

// Options wires optional collaborators. Nil fields disable the feature; a
// nil Pipeline gets the default circle spotlight.
type Options struct {
	Pipeline   *vision.Pipeline
	AutoSelect bool
	Archiver   Archiver
	Recorder   Recorder
	Notifiers  []Notifier
}

// CreateOptions describes a new session. Zero dimensions leave the viewport
// unset.
type CreateOptions struct {
	VideoWidth      int
	VideoHeight     int
	ContainerWidth  int
	ContainerHeight int
	AutoSelect      *bool
}

// Manager manages tracking session lifecycle.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(opts Options) *Manager {
	if opts.Pipeline == nil {
		opts.Pipeline = vision.NewPipeline(config.SpotlightConfig{
			Effect:    config.EffectCircle,
			Radius:    150,
			Feather:   50,
			Intensity: 0.7,
		})
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create opens a session with its own tracker.
func (m *Manager) Create(ctx context.Context, co CreateOptions) (*Session, error) {
	auto := m.opts.AutoSelect
	if co.AutoSelect != nil {
		auto = *co.AutoSelect
	}

	id := uuid.New()
	s := newSession(id, m.opts.Pipeline, auto, func(evs []models.LockEvent) {
		m.dispatch(id, evs)
	})
	if co.VideoWidth > 0 && co.VideoHeight > 0 && co.ContainerWidth > 0 && co.ContainerHeight > 0 {
		s.SetViewport(co.VideoWidth, co.VideoHeight, co.ContainerWidth, co.ContainerHeight)
	}

	if m.opts.Recorder != nil {
		rec := &models.SessionRecord{
			ID:          id,
			VideoWidth:  co.VideoWidth,
			VideoHeight: co.VideoHeight,
			Status:      models.SessionStatusOpen,
		}
		if err := m.opts.Recorder.CreateSession(ctx, rec); err != nil {
			return nil, fmt.Errorf("record session: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	observability.ActiveSessions.Inc()
	slog.Info("session created", "session_id", id, "auto_select", auto)
	return s, nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveCount returns the number of open sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close removes the session, resets its tracker and archives what it tracked.
// Archive and record failures are logged; the session is closed regardless.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) (models.TrackingArchive, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return models.TrackingArchive{}, ErrNotFound
	}
	observability.ActiveSessions.Dec()

	archive, events := s.close(time.Now().UTC())
	m.dispatch(id, events)

	var key string
	if m.opts.Archiver != nil {
		k, err := m.opts.Archiver.PutArchive(ctx, archive)
		if err != nil {
			slog.Error("archive session", "session_id", id, "error", err)
		} else {
			key = k
		}
	}
	if m.opts.Recorder != nil {
		if err := m.opts.Recorder.CloseSession(ctx, id, archive.SubjectID, key, archive.ClosedAt); err != nil {
			slog.Error("record session close", "session_id", id, "error", err)
		}
	}

	slog.Info("session closed",
		"session_id", id,
		"subject_id", archive.SubjectID,
		"ingested", archive.Ingested,
		"rejected", archive.Rejected,
		"archive_key", key,
	)
	return archive, nil
}

// CloseAll closes every open session.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, s := range m.List() {
		if _, err := m.Close(ctx, s.ID); err != nil {
			slog.Warn("close session", "session_id", s.ID, "error", err)
		}
	}
}

// Archive returns the stored archive of a closed session.
func (m *Manager) Archive(ctx context.Context, id uuid.UUID) (*models.TrackingArchive, error) {
	if m.opts.Archiver == nil {
		return nil, ErrArchivesDisabled
	}
	return m.opts.Archiver.GetArchive(ctx, id)
}

// RunRetention prunes old archives every interval until ctx is done.
func (m *Manager) RunRetention(ctx context.Context, interval, retention time.Duration) {
	if m.opts.Archiver == nil {
		return
	}
	if interval <= 0 {
		slog.Warn("archive retention disabled", "interval", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.opts.Archiver.PruneArchives(ctx, retention); err != nil {
				slog.Warn("prune archives", "error", err)
			}
		}
	}
}

// HandleFrame routes a detection frame to its session.
func (m *Manager) HandleFrame(frame dto.DetectionFrame) (dto.IngestResponse, error) {
	id, err := uuid.Parse(frame.SessionID)
	if err != nil {
		return dto.IngestResponse{}, fmt.Errorf("invalid session id %q: %w", frame.SessionID, err)
	}
	s, err := m.Get(id)
	if err != nil {
		return dto.IngestResponse{}, err
	}
	return s.IngestFrame(frame)
}

// Command is a session control message from the control subject.
type Command struct {
	Action    string   `json:"action"` // reset, select, close
	SessionID string   `json:"session_id"`
	SubjectID string   `json:"subject_id,omitempty"`
	ClickX    *float64 `json:"click_x,omitempty"`
	ClickY    *float64 `json:"click_y,omitempty"`
}

// HandleCommand processes a session control command.
func (m *Manager) HandleCommand(ctx context.Context, cmd Command) error {
	id, err := uuid.Parse(cmd.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", cmd.SessionID, err)
	}

	switch cmd.Action {
	case "reset":
		s, err := m.Get(id)
		if err != nil {
			return err
		}
		s.Reset()
		return nil
	case "select":
		s, err := m.Get(id)
		if err != nil {
			return err
		}
		if cmd.SubjectID != "" {
			return s.SelectSubject(cmd.SubjectID)
		}
		if cmd.ClickX != nil && cmd.ClickY != nil {
			_, err := s.SelectAt(*cmd.ClickX, *cmd.ClickY)
			return err
		}
		return fmt.Errorf("select needs subject_id or click_x/click_y")
	case "close":
		_, err := m.Close(ctx, id)
		return err
	default:
		return fmt.Errorf("unknown action: %s", cmd.Action)
	}
}

// ParseCommand parses a NATS message into a Command.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("parse command: %w", err)
	}
	return cmd, nil
}

func (m *Manager) dispatch(id uuid.UUID, events []models.LockEvent) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, ev := range events {
		if m.opts.Recorder != nil {
			if err := m.opts.Recorder.RecordLockEvent(ctx, id, ev); err != nil {
				slog.Warn("record lock event", "session_id", id, "kind", ev.Kind, "error", err)
			}
		}
		for _, n := range m.opts.Notifiers {
			n.NotifyLockEvent(ctx, id, ev)
		}
	}
}
