// Package session owns one tracker per viewer session and the selection,
// viewport and event state around it.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/spotlight/internal/geometry"
	"github.com/your-org/spotlight/internal/guards"
	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/internal/observability"
	"github.com/your-org/spotlight/internal/vision"
	"github.com/your-org/spotlight/pkg/dto"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrClosed       = errors.New("session closed")
	ErrNoCandidates = errors.New("no detected subjects to select from")
	ErrNoViewport   = errors.New("viewport not set")
	ErrNoSubject    = errors.New("no subject selected")
	ErrNotTracking  = errors.New("selected subject not tracked yet")

	ErrArchivesDisabled = errors.New("archives disabled")
)

const maxEvents = 1024

// Session tracks at most one selected subject for one video.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	pipeline *vision.Pipeline
	tracker  *vision.Tracker
	emit     func([]models.LockEvent)

	mu          sync.Mutex
	closed      bool
	subjectID   string
	autoSelect  bool
	videoW      int
	videoH      int
	rect        models.VideoRenderRect
	candidates  []models.Detection
	status      models.TrackingStatus
	lastFrameMs float64
	events      []models.LockEvent
	ingested    int
	rejected    int
}

// Info is a point-in-time view of a session.
type Info struct {
	ID         uuid.UUID
	SubjectID  string
	AutoSelect bool
	VideoW     int
	VideoH     int
	RenderRect models.VideoRenderRect
	Status     models.TrackingStatus
	Ingested   int
	Rejected   int
	CreatedAt  time.Time
}

func newSession(id uuid.UUID, pipeline *vision.Pipeline, autoSelect bool, emit func([]models.LockEvent)) *Session {
	if emit == nil {
		emit = func([]models.LockEvent) {}
	}
	return &Session{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		pipeline:   pipeline,
		tracker:    vision.NewTracker(),
		emit:       emit,
		autoSelect: autoSelect,
		status:     models.TrackingStatusIdle,
	}
}

// IngestFrame sanitizes every player in the frame, remembers them as
// selection candidates and feeds the selected subject to the tracker.
func (s *Session) IngestFrame(frame dto.DetectionFrame) (dto.IngestResponse, error) {
	var resp dto.IngestResponse
	if err := guards.ValidTimestamp(frame.TimestampMs); err != nil {
		// The whole frame is dropped; only the rejection count moves.
		resp.Rejected = len(frame.Players)
		observability.DetectionsRejected.WithLabelValues(rejectReason(err)).Add(float64(len(frame.Players)))
		slog.Warn("frame dropped", "session_id", s.ID, "timestamp_ms", frame.TimestampMs, "error", err)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return dto.IngestResponse{}, ErrClosed
		}
		s.rejected += resp.Rejected
		resp.SubjectID = s.subjectID
		return resp, nil
	}

	valid := make([]models.Detection, 0, len(frame.Players))
	for _, p := range frame.Players {
		det, err := guards.Sanitize(p, frame.TimestampMs)
		if err != nil {
			resp.Rejected++
			observability.DetectionsRejected.WithLabelValues(rejectReason(err)).Inc()
			slog.Warn("detection dropped", "session_id", s.ID, "error", err)
			continue
		}
		valid = append(valid, det)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return dto.IngestResponse{}, ErrClosed
	}

	var events []models.LockEvent
	s.rejected += resp.Rejected
	if len(valid) > 0 {
		s.candidates = valid
	}

	if s.subjectID == "" && s.autoSelect {
		if best, ok := vision.MostProminent(valid); ok {
			s.subjectID = best.ID
			slog.Info("auto-selected subject", "session_id", s.ID, "subject_id", best.ID)
		}
	}

	for _, det := range valid {
		if det.ID != s.subjectID {
			continue
		}
		ev, ok := s.ingestLocked(det)
		if !ok {
			resp.Rejected++
			s.rejected++
			observability.DetectionsRejected.WithLabelValues("out_of_order").Inc()
			continue
		}
		resp.Tracked = true
		events = append(events, ev...)
	}
	resp.Accepted = len(valid)
	resp.SubjectID = s.subjectID
	if frame.TimestampMs > s.lastFrameMs {
		s.lastFrameMs = frame.TimestampMs
	}
	events = append(events, s.refreshStatusLocked(s.lastFrameMs)...)
	s.mu.Unlock()

	s.emit(events)
	return resp, nil
}

// ingestLocked requires s.mu held.
func (s *Session) ingestLocked(det models.Detection) ([]models.LockEvent, bool) {
	prev := s.tracker.LockedID()
	if !s.tracker.Ingest(det) {
		return nil, false
	}
	s.ingested++
	observability.DetectionsIngested.WithLabelValues(s.ID.String()).Inc()

	switch prev {
	case det.ID:
		return nil, true
	case "":
		return []models.LockEvent{s.eventLocked(models.LockAcquired, det.ID, det.TimestampMs)}, true
	default:
		return []models.LockEvent{s.eventLocked(models.LockSwitched, det.ID, det.TimestampMs)}, true
	}
}

// SelectSubject locks onto subjectID. A different subject resets the tracker;
// if the subject is among the latest candidates it is ingested immediately.
func (s *Session) SelectSubject(subjectID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	events := s.selectLocked(subjectID)
	s.mu.Unlock()

	s.emit(events)
	return nil
}

// SelectAt maps a click in container pixels to the nearest candidate.
func (s *Session) SelectAt(clickX, clickY float64) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if geometry.IsEmpty(s.rect) {
		s.mu.Unlock()
		return "", ErrNoViewport
	}
	nx, ny := geometry.ClickToNormalized(clickX, clickY, s.rect)
	nearest, ok := vision.NearestTo(s.candidates, nx, ny)
	if !ok {
		s.mu.Unlock()
		return "", ErrNoCandidates
	}
	events := s.selectLocked(nearest.ID)
	s.mu.Unlock()

	s.emit(events)
	return nearest.ID, nil
}

func (s *Session) selectLocked(subjectID string) []models.LockEvent {
	if subjectID == s.subjectID {
		return nil
	}

	var events []models.LockEvent
	if prev := s.tracker.LockedID(); prev != "" {
		events = append(events, s.eventLocked(models.LockReleased, prev, s.lastFrameMs))
	}
	s.tracker.Reset()
	s.subjectID = subjectID
	s.status = models.TrackingStatusIdle

	for _, det := range s.candidates {
		if det.ID == subjectID {
			if ev, ok := s.ingestLocked(det); ok {
				events = append(events, ev...)
			}
			break
		}
	}
	return append(events, s.refreshStatusLocked(s.lastFrameMs)...)
}

// SetViewport recomputes the render rect for new video or container sizes.
func (s *Session) SetViewport(videoW, videoH, containerW, containerH int) models.VideoRenderRect {
	rect := geometry.CalculateVideoRenderRect(float64(videoW), float64(videoH), float64(containerW), float64(containerH))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoW, s.videoH = videoW, videoH
	s.rect = rect
	return rect
}

// BoxAt answers a render-time query. An empty subjectID means the current
// selection.
func (s *Session) BoxAt(subjectID string, tsMs float64) (vision.Estimate, bool) {
	if subjectID == "" {
		s.mu.Lock()
		subjectID = s.subjectID
		s.mu.Unlock()
	}
	if subjectID == "" {
		return vision.Estimate{}, false
	}
	return s.tracker.BoxAt(subjectID, tsMs)
}

// Render produces the frame for the current selection at tsMs.
func (s *Session) Render(tsMs float64) (vision.Frame, error) {
	s.mu.Lock()
	if s.subjectID == "" {
		s.mu.Unlock()
		return vision.Frame{}, ErrNoSubject
	}
	frame, ok := s.pipeline.Render(s.tracker, s.subjectID, tsMs, s.rect)
	var events []models.LockEvent
	if ok {
		events = s.refreshStatusLocked(tsMs)
	}
	s.mu.Unlock()

	s.emit(events)
	if !ok {
		return vision.Frame{}, ErrNotTracking
	}
	return frame, nil
}

// Reset clears the selection and the tracker. Used when the video source
// changes or playback restarts.
func (s *Session) Reset() {
	s.mu.Lock()
	var events []models.LockEvent
	if prev := s.tracker.LockedID(); prev != "" {
		events = append(events, s.eventLocked(models.LockReleased, prev, s.lastFrameMs))
	}
	s.tracker.Reset()
	s.subjectID = ""
	s.candidates = nil
	s.status = models.TrackingStatusIdle
	s.lastFrameMs = 0
	s.mu.Unlock()

	s.emit(events)
	slog.Info("session reset", "session_id", s.ID)
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.ID,
		SubjectID:  s.subjectID,
		AutoSelect: s.autoSelect,
		VideoW:     s.videoW,
		VideoH:     s.videoH,
		RenderRect: s.rect,
		Status:     s.status,
		Ingested:   s.ingested,
		Rejected:   s.rejected,
		CreatedAt:  s.CreatedAt,
	}
}

// Events returns a copy of the recorded lock events, oldest first.
func (s *Session) Events() []models.LockEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LockEvent, len(s.events))
	copy(out, s.events)
	return out
}

// close marks the session closed and returns its archive along with the
// release event, if any.
func (s *Session) close(now time.Time) (models.TrackingArchive, []models.LockEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archive := models.TrackingArchive{
		SessionID:   s.ID,
		SubjectID:   s.subjectID,
		VideoWidth:  s.videoW,
		VideoHeight: s.videoH,
		History:     s.tracker.History(),
		Ingested:    s.ingested,
		Rejected:    s.rejected,
		ClosedAt:    now,
	}
	var events []models.LockEvent
	if prev := s.tracker.LockedID(); prev != "" {
		events = append(events, s.eventLocked(models.LockReleased, prev, s.lastFrameMs))
	}
	archive.Events = make([]models.LockEvent, len(s.events))
	copy(archive.Events, s.events)

	s.tracker.Reset()
	s.closed = true
	return archive, events
}

// refreshStatusLocked emits a status event when the tracking status moved.
func (s *Session) refreshStatusLocked(tsMs float64) []models.LockEvent {
	st := s.tracker.Status(tsMs)
	if st == s.status {
		return nil
	}
	s.status = st
	ev := s.eventLocked(models.StatusChanged, s.tracker.LockedID(), tsMs)
	return []models.LockEvent{ev}
}

func (s *Session) eventLocked(kind models.LockEventKind, subjectID string, tsMs float64) models.LockEvent {
	ev := models.LockEvent{
		SessionID:   s.ID.String(),
		SubjectID:   subjectID,
		Kind:        kind,
		Status:      s.status,
		TimestampMs: tsMs,
	}
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	return ev
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, guards.ErrTemporalAnomaly):
		return "temporal"
	case errors.Is(err, guards.ErrMalformedInput):
		return "malformed"
	default:
		return "other"
	}
}
