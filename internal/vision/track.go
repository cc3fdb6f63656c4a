package vision

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/your-org/spotlight/internal/guards"
	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/internal/observability"
)

const (
	// HistorySize is the number of keyframes kept per lock.
	HistorySize = 4

	// ExtrapolationWindowMs bounds raw-velocity extrapolation past the newest keyframe.
	ExtrapolationWindowMs = 200.0

	// MaxExtrapolationVelocity caps keyframe velocity in units/sec.
	MaxExtrapolationVelocity = 2.5

	extrapolationEase = 0.3

	// Gaps wider than this restart the fallback filter while seeding it.
	seedGapMs = maxUpdateDt * 1000
)

// Source names the path that produced an estimate.
type Source string

const (
	SourceInterpolated Source = "interpolated"
	SourceExtrapolated Source = "extrapolated"
	SourceFallback     Source = "fallback"
	SourceHeld         Source = "held"
)

// Estimate is the answer to a render-time query.
type Estimate struct {
	Box    models.BoundingBox    `json:"box"`
	Source Source                `json:"source"`
	Status models.TrackingStatus `json:"status"`
}

// Tracker holds a keyframe lock on one subject and answers box queries for
// arbitrary render times. Ingestion and queries may come from different
// goroutines.
type Tracker struct {
	mu       sync.Mutex
	lockedID string
	history  []models.HistoryEntry

	// fallback is rebuilt from history on the first query after a change.
	fallback      *Smoother
	fallbackDirty bool
}

// NewTracker creates an unlocked tracker.
func NewTracker() *Tracker {
	return &Tracker{
		history:  make([]models.HistoryEntry, 0, HistorySize),
		fallback: NewSmoother(),
	}
}

// Ingest applies a validated detection. A different ID starts a new lock;
// the same ID appends a keyframe, evicting the oldest beyond HistorySize.
// Timestamps that are invalid or not newer than the last keyframe of the
// current lock are rejected without touching state.
func (t *Tracker) Ingest(det models.Detection) bool {
	if err := guards.ValidTimestamp(det.TimestampMs); err != nil {
		slog.Warn("tracker rejected detection", "id", det.ID, "error", err)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := models.HistoryEntry{TimestampMs: det.TimestampMs, Box: det.Box}

	if t.lockedID == "" || det.ID != t.lockedID {
		if t.lockedID != "" {
			slog.Debug("tracker lock switched", "from", t.lockedID, "to", det.ID)
		}
		t.lockedID = det.ID
		t.history = append(t.history[:0], entry)
		t.fallbackDirty = true
		return true
	}

	newest := t.history[len(t.history)-1]
	if det.TimestampMs <= newest.TimestampMs {
		slog.Warn("tracker rejected out-of-order detection",
			"id", det.ID,
			"timestamp_ms", det.TimestampMs,
			"newest_ms", newest.TimestampMs,
		)
		return false
	}

	t.history = append(t.history, entry)
	if len(t.history) > HistorySize {
		t.history = append(t.history[:0], t.history[len(t.history)-HistorySize:]...)
	}
	t.fallbackDirty = true
	return true
}

// BoxAt estimates the box of subjectID at tsMs. It reports false when that
// subject is not the current lock or the timestamp is not video-relative.
func (t *Tracker) BoxAt(subjectID string, tsMs float64) (Estimate, bool) {
	if guards.ValidTimestamp(tsMs) != nil {
		return Estimate{}, false
	}
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lockedID == "" || subjectID != t.lockedID || len(t.history) == 0 {
		return Estimate{}, false
	}

	est := t.estimate(tsMs)
	est.Status = models.StatusForConfidence(est.Box.Confidence, ConfidenceThreshold)

	observability.EstimatesServed.WithLabelValues(string(est.Source)).Inc()
	observability.EstimateDuration.WithLabelValues("box_at").Observe(time.Since(start).Seconds())
	return est, true
}

// Status reports idle until a lock exists, then tracking or lost depending
// on the confidence of the estimate at tsMs.
func (t *Tracker) Status(tsMs float64) models.TrackingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lockedID == "" || len(t.history) == 0 {
		return models.TrackingStatusIdle
	}
	if guards.ValidTimestamp(tsMs) != nil {
		tsMs = t.history[len(t.history)-1].TimestampMs
	}
	est := t.estimate(tsMs)
	return models.StatusForConfidence(est.Box.Confidence, ConfidenceThreshold)
}

// Reset drops the lock and its history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lockedID = ""
	t.history = t.history[:0]
	t.fallback.Reset()
	t.fallbackDirty = false
}

func (t *Tracker) LockedID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lockedID
}

// History returns a copy of the keyframes, oldest first.
func (t *Tracker) History() []models.HistoryEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.HistoryEntry, len(t.history))
	copy(out, t.history)
	return out
}

// estimate requires t.mu held and a non-empty history.
func (t *Tracker) estimate(tsMs float64) Estimate {
	oldest := t.history[0]
	newest := t.history[len(t.history)-1]

	switch {
	case tsMs < oldest.TimestampMs:
		return Estimate{Box: oldest.Box, Source: SourceHeld}
	case tsMs <= newest.TimestampMs:
		return Estimate{Box: t.interpolate(tsMs), Source: SourceInterpolated}
	case tsMs-newest.TimestampMs <= ExtrapolationWindowMs:
		return Estimate{Box: t.extrapolate(tsMs), Source: SourceExtrapolated}
	}

	box, ok := t.seededFallback().Predict(tsMs)
	if !ok {
		return Estimate{Box: newest.Box, Source: SourceHeld}
	}
	// Never report more confidence than the end of the extrapolation window.
	box.Confidence = math.Min(box.Confidence, newest.Box.Confidence*(1-extrapolationEase))
	return Estimate{Box: box, Source: SourceFallback}
}

func (t *Tracker) interpolate(tsMs float64) models.BoundingBox {
	for i := 0; i < len(t.history)-1; i++ {
		a, b := t.history[i], t.history[i+1]
		if tsMs < a.TimestampMs || tsMs > b.TimestampMs {
			continue
		}
		frac := (tsMs - a.TimestampMs) / (b.TimestampMs - a.TimestampMs)
		return models.BoxFromCenter(
			lerp(a.Box.CenterX, b.Box.CenterX, frac),
			lerp(a.Box.CenterY, b.Box.CenterY, frac),
			lerp(a.Box.Width, b.Box.Width, frac),
			lerp(a.Box.Height, b.Box.Height, frac),
			math.Min(a.Box.Confidence, b.Box.Confidence),
		)
	}
	// Single keyframe queried at its own timestamp.
	return t.history[len(t.history)-1].Box
}

func (t *Tracker) extrapolate(tsMs float64) models.BoundingBox {
	newest := t.history[len(t.history)-1]
	deltaMs := tsMs - newest.TimestampMs

	var velocity r2.Vec
	if len(t.history) >= 2 {
		prev := t.history[len(t.history)-2]
		dt := (newest.TimestampMs - prev.TimestampMs) / 1000
		step := r2.Sub(center(newest.Box), center(prev.Box))
		velocity = CapVelocity(r2.Scale(1/dt, step), MaxExtrapolationVelocity)
	}

	pos := r2.Add(center(newest.Box), r2.Scale(deltaMs/1000, velocity))
	confidence := newest.Box.Confidence * (1 - extrapolationEase*deltaMs/ExtrapolationWindowMs)
	return models.BoxFromCenter(
		clamp(pos.X, 0, 1),
		clamp(pos.Y, 0, 1),
		newest.Box.Width,
		newest.Box.Height,
		confidence,
	)
}

// seededFallback replays the history into the fallback filter when it has
// changed since the last query.
func (t *Tracker) seededFallback() *Smoother {
	if !t.fallbackDirty {
		return t.fallback
	}
	t.fallback.Reset()
	var last float64
	for i, e := range t.history {
		if i > 0 && e.TimestampMs-last > seedGapMs {
			t.fallback.Reset()
		}
		t.fallback.Update(e.Box, e.TimestampMs)
		last = e.TimestampMs
	}
	t.fallbackDirty = false
	return t.fallback
}

// center reads the carried centre rather than recomputing it from x/width.
func center(b models.BoundingBox) r2.Vec {
	return r2.Vec{X: b.CenterX, Y: b.CenterY}
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}
