package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/pkg/dto"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.LockEvent
}

func (n *recordingNotifier) NotifyLockEvent(_ context.Context, _ uuid.UUID, ev models.LockEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) kinds() []models.LockEventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.LockEventKind, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Kind
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

type memArchiver struct {
	mu       sync.Mutex
	archives map[uuid.UUID]models.TrackingArchive
	failPut  bool
}

func newMemArchiver() *memArchiver {
	return &memArchiver{archives: make(map[uuid.UUID]models.TrackingArchive)}
}

func (a *memArchiver) PutArchive(_ context.Context, archive models.TrackingArchive) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failPut {
		return "", errors.New("bucket unavailable")
	}
	a.archives[archive.SessionID] = archive
	return "archives/" + archive.SessionID.String() + "/tracking.json", nil
}

func (a *memArchiver) GetArchive(_ context.Context, id uuid.UUID) (*models.TrackingArchive, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	archive, ok := a.archives[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &archive, nil
}

func (a *memArchiver) PruneArchives(context.Context, time.Duration) (int, error) {
	return 0, nil
}

type memRecorder struct {
	mu      sync.Mutex
	created []uuid.UUID
	closed  map[uuid.UUID]string
	events  int
}

func (r *memRecorder) CreateSession(_ context.Context, rec *models.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, rec.ID)
	return nil
}

func (r *memRecorder) CloseSession(_ context.Context, id uuid.UUID, _, archiveKey string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed == nil {
		r.closed = make(map[uuid.UUID]string)
	}
	r.closed[id] = archiveKey
	return nil
}

func (r *memRecorder) RecordLockEvent(context.Context, uuid.UUID, models.LockEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events++
	return nil
}

func player(id string, cx, cy, w, h, conf float64) dto.Detection {
	return dto.Detection{
		ID: id,
		RawBox: models.RawBox{
			X:          models.Float(cx - w/2),
			Y:          models.Float(cy - h/2),
			Width:      models.Float(w),
			Height:     models.Float(h),
			CenterX:    models.Float(cx),
			CenterY:    models.Float(cy),
			Confidence: models.Float(conf),
		},
	}
}

func frame(ts float64, players ...dto.Detection) dto.DetectionFrame {
	return dto.DetectionFrame{TimestampMs: ts, Players: players}
}

func newTestManager(t *testing.T, auto bool) (*Manager, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	return NewManager(Options{AutoSelect: auto, Notifiers: []Notifier{n}}), n
}

func TestIngestAutoSelectsMostProminent(t *testing.T) {
	m, n := newTestManager(t, true)
	s, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	resp, err := s.IngestFrame(frame(100,
		player("small", 0.2, 0.5, 0.05, 0.1, 0.9),
		player("big", 0.7, 0.5, 0.2, 0.4, 0.8),
	))
	require.NoError(t, err)

	assert.Equal(t, dto.IngestResponse{Accepted: 2, SubjectID: "big", Tracked: true}, resp)
	assert.Equal(t, []models.LockEventKind{models.LockAcquired, models.StatusChanged}, n.kinds())

	info := s.Info()
	assert.Equal(t, "big", info.SubjectID)
	assert.Equal(t, models.TrackingStatusTracking, info.Status)
	assert.Equal(t, 1, info.Ingested)
	assert.Len(t, s.Events(), 2)
}

func TestIngestWithoutAutoSelectWaitsForSelection(t *testing.T) {
	m, n := newTestManager(t, false)
	s, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	resp, err := s.IngestFrame(frame(100, player("p1", 0.5, 0.5, 0.1, 0.2, 0.9)))
	require.NoError(t, err)
	assert.False(t, resp.Tracked)
	assert.Empty(t, resp.SubjectID)
	assert.Empty(t, n.kinds())
	assert.Equal(t, models.TrackingStatusIdle, s.Info().Status)
}

func TestIngestCountsRejectedPlayers(t *testing.T) {
	m, _ := newTestManager(t, true)
	s, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	noWidth := player("p2", 0.5, 0.5, 0.1, 0.2, 0.9)
	noWidth.Width = nil

	resp, err := s.IngestFrame(frame(100,
		player("", 0.2, 0.5, 0.1, 0.2, 0.9),
		noWidth,
		player("p3", 0.8, 0.5, 0.1, 0.2, 0.9),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 2, resp.Rejected)
	assert.Equal(t, "p3", resp.SubjectID)

	// A stale frame for the locked subject is rejected by the tracker.
	resp, err = s.IngestFrame(frame(50, player("p3", 0.8, 0.5, 0.1, 0.2, 0.9)))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Rejected)
	assert.False(t, resp.Tracked)
	assert.Equal(t, 3, s.Info().Rejected)
}

func TestIngestDropsWallClockFrame(t *testing.T) {
	m, n := newTestManager(t, true)
	s, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	_, err = s.IngestFrame(frame(0, player("p1", 0.5, 0.5, 0.1, 0.2, 0.25)))
	require.NoError(t, err)
	require.Equal(t, models.TrackingStatusTracking, s.Info().Status)
	n.reset()

	resp, err := s.IngestFrame(frame(1.7e12,
		player("p1", 0.6, 0.5, 0.1, 0.2, 0.9),
		player("p2", 0.2, 0.5, 0.1, 0.2, 0.9),
	))
	require.NoError(t, err)
	assert.Equal(t, dto.IngestResponse{Rejected: 2, SubjectID: "p1"}, resp)
	assert.Empty(t, n.kinds())
	history := s.tracker.History()
	require.Len(t, history, 1)
	assert.Zero(t, history[0].TimestampMs)

	// The session clock still follows video time, so the subject decays.
	for _, ts := range []float64{1000, 2000} {
		_, err = s.IngestFrame(frame(ts))
		require.NoError(t, err)
	}
	info := s.Info()
	assert.Equal(t, models.TrackingStatusLost, info.Status)
	assert.Equal(t, 2, info.Rejected)
	assert.Equal(t, []models.LockEventKind{models.StatusChanged}, n.kinds())
	for _, ev := range s.Events() {
		assert.Less(t, ev.TimestampMs, 1e7)
	}
}

func TestSelectAtSwitchesSubject(t *testing.T) {
	m, n := newTestManager(t, false)
	s, err := m.Create(context.Background(), CreateOptions{
		VideoWidth: 1920, VideoHeight: 1080, ContainerWidth: 1000, ContainerHeight: 1000,
	})
	require.NoError(t, err)

	_, err = s.IngestFrame(frame(100,
		player("left", 0.2, 0.5, 0.1, 0.2, 0.9),
		player("right", 0.8, 0.5, 0.1, 0.2, 0.9),
	))
	require.NoError(t, err)

	id, err := s.SelectAt(800, 500)
	require.NoError(t, err)
	assert.Equal(t, "right", id)
	assert.Equal(t, []models.LockEventKind{models.LockAcquired, models.StatusChanged}, n.kinds())

	n.reset()
	id, err = s.SelectAt(150, 500)
	require.NoError(t, err)
	assert.Equal(t, "left", id)
	assert.Equal(t, []models.LockEventKind{models.LockReleased, models.LockAcquired, models.StatusChanged}, n.kinds())

	est, ok := s.BoxAt("", 100)
	require.True(t, ok)
	assert.InDelta(t, 0.2, est.Box.CenterX, 1e-9)

	// Selecting the current subject again is a no-op.
	n.reset()
	require.NoError(t, s.SelectSubject("left"))
	assert.Empty(t, n.kinds())
}

func TestSelectAtNeedsViewportAndCandidates(t *testing.T) {
	m, _ := newTestManager(t, false)
	s, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	_, err = s.SelectAt(100, 100)
	assert.ErrorIs(t, err, ErrNoViewport)

	s.SetViewport(1920, 1080, 1000, 1000)
	_, err = s.SelectAt(100, 100)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestRender(t *testing.T) {
	m, n := newTestManager(t, false)
	s, err := m.Create(context.Background(), CreateOptions{
		VideoWidth: 1920, VideoHeight: 1080, ContainerWidth: 1000, ContainerHeight: 1000,
	})
	require.NoError(t, err)

	_, err = s.Render(100)
	assert.ErrorIs(t, err, ErrNoSubject)

	require.NoError(t, s.SelectSubject("ghost"))
	_, err = s.Render(100)
	assert.ErrorIs(t, err, ErrNotTracking)

	_, err = s.IngestFrame(frame(100, player("ghost", 0.5, 0.5, 0.1, 0.2, 0.9)))
	require.NoError(t, err)

	f, err := s.Render(100)
	require.NoError(t, err)
	assert.True(t, f.Valid)
	assert.InDelta(t, 500.0, f.Pixels.CenterX, 1e-9)
	assert.Equal(t, models.TrackingStatusTracking, f.Status)

	// Long after the last detection the subject is reported lost.
	n.reset()
	f, err = s.Render(5000)
	require.NoError(t, err)
	assert.Equal(t, models.TrackingStatusLost, f.Status)
	assert.Equal(t, []models.LockEventKind{models.StatusChanged}, n.kinds())
	assert.Equal(t, models.TrackingStatusLost, s.Info().Status)
}

func TestReset(t *testing.T) {
	m, n := newTestManager(t, true)
	s, err := m.Create(context.Background(), CreateOptions{})
	require.NoError(t, err)

	_, err = s.IngestFrame(frame(1000, player("p1", 0.5, 0.5, 0.1, 0.2, 0.9)))
	require.NoError(t, err)

	n.reset()
	s.Reset()
	assert.Equal(t, []models.LockEventKind{models.LockReleased}, n.kinds())

	info := s.Info()
	assert.Empty(t, info.SubjectID)
	assert.Equal(t, models.TrackingStatusIdle, info.Status)

	// Playback restarted: earlier timestamps are accepted again.
	resp, err := s.IngestFrame(frame(0, player("p1", 0.5, 0.5, 0.1, 0.2, 0.9)))
	require.NoError(t, err)
	assert.True(t, resp.Tracked)
}
