package vision

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/your-org/spotlight/internal/guards"
	"github.com/your-org/spotlight/internal/models"
)

// Motion bounds tuned for fast-moving players in a frame normalized to [0,1].
const (
	MaxVelocity         = 1.5  // units/sec
	DampingFactor       = 0.98 // applied to velocity after each blend
	PositionSmoothing   = 0.7  // upper bound of the trust factor
	VelocitySmoothing   = 0.6  // weight of the new velocity sample
	ConfidenceThreshold = 0.2

	sizeSmoothing   = 0.2 // weight of the new size sample
	confidenceDecay = 0.9
	minUpdateDt     = 0.016 // seconds
	maxUpdateDt     = 1.0
	maxPredictDt    = 0.5
)

// TrackingState is the filter state of one Smoother.
type TrackingState struct {
	Position          r2.Vec
	Velocity          r2.Vec // units/sec
	Size              r2.Vec // width, height
	Confidence        float64
	LastUpdateMs      float64
	PredictedPosition r2.Vec
}

type SmootherStatus struct {
	IsTracking        bool    `json:"is_tracking"`
	Confidence        float64 `json:"confidence"`
	VelocityMagnitude float64 `json:"velocity_magnitude"`
}

// Smoother turns a stream of raw detections for one subject into a
// velocity-capped, confidence-weighted estimate. It is not safe for
// concurrent use; Tracker serializes access.
type Smoother struct {
	state *TrackingState
}

func NewSmoother() *Smoother {
	return &Smoother{}
}

// Update ingests one sample and returns the smoothed box. Samples closer than
// 16ms or further than 1s from the previous one are ignored and the last
// estimate is returned.
func (s *Smoother) Update(det models.BoundingBox, tsMs float64) models.BoundingBox {
	if guards.ValidTimestamp(tsMs) != nil {
		if s.state == nil {
			return det
		}
		return s.box()
	}

	if s.state == nil {
		center := r2.Vec{X: det.CenterX, Y: det.CenterY}
		s.state = &TrackingState{
			Position:          center,
			Size:              r2.Vec{X: det.Width, Y: det.Height},
			Confidence:        det.Confidence,
			LastUpdateMs:      tsMs,
			PredictedPosition: center,
		}
		return det
	}

	st := s.state
	dt := (tsMs - st.LastUpdateMs) / 1000
	if dt < minUpdateDt || dt > maxUpdateDt {
		return s.box()
	}

	center := r2.Vec{X: det.CenterX, Y: det.CenterY}
	raw := r2.Scale(1/dt, r2.Sub(center, st.Position))
	capped := CapVelocity(raw, MaxVelocity)

	st.Velocity = r2.Add(
		r2.Scale(1-VelocitySmoothing, st.Velocity),
		r2.Scale(VelocitySmoothing, capped),
	)
	st.Velocity = r2.Scale(DampingFactor, st.Velocity)

	expected := r2.Add(st.Position, r2.Scale(dt, st.Velocity))
	trust := clamp(det.Confidence, ConfidenceThreshold, 1.0) * PositionSmoothing
	st.Position = r2.Add(r2.Scale(1-trust, expected), r2.Scale(trust, center))
	st.PredictedPosition = expected

	st.Size = r2.Add(
		r2.Scale(1-sizeSmoothing, st.Size),
		r2.Scale(sizeSmoothing, r2.Vec{X: det.Width, Y: det.Height}),
	)
	st.Confidence = math.Max(st.Confidence*confidenceDecay, det.Confidence)
	st.LastUpdateMs = tsMs

	return s.box()
}

// Predict projects the estimate to tsMs. It reports false before the first
// Update. Beyond 0.5s the last position is held and only confidence decays.
func (s *Smoother) Predict(tsMs float64) (models.BoundingBox, bool) {
	if s.state == nil {
		return models.BoundingBox{}, false
	}
	st := s.state
	if guards.ValidTimestamp(tsMs) != nil {
		return s.box(), true
	}

	dt := math.Max(0, (tsMs-st.LastUpdateMs)/1000)
	confidence := st.Confidence * math.Exp(-dt)

	pos := st.Position
	if dt <= maxPredictDt {
		pos = r2.Add(st.Position, r2.Scale(dt, st.Velocity))
		pos = r2.Vec{X: clamp(pos.X, 0, 1), Y: clamp(pos.Y, 0, 1)}
	}
	return models.BoxFromCenter(pos.X, pos.Y, st.Size.X, st.Size.Y, confidence), true
}

// Reset returns the filter to its uninitialized state.
func (s *Smoother) Reset() {
	s.state = nil
}

func (s *Smoother) Initialized() bool {
	return s.state != nil
}

func (s *Smoother) Status() SmootherStatus {
	if s.state == nil {
		return SmootherStatus{}
	}
	return SmootherStatus{
		IsTracking:        s.state.Confidence > ConfidenceThreshold,
		Confidence:        s.state.Confidence,
		VelocityMagnitude: r2.Norm(s.state.Velocity),
	}
}

// State returns a copy of the filter state.
func (s *Smoother) State() (TrackingState, bool) {
	if s.state == nil {
		return TrackingState{}, false
	}
	return *s.state, true
}

// box rebuilds the current estimate; callers check s.state first.
func (s *Smoother) box() models.BoundingBox {
	st := s.state
	return models.BoxFromCenter(st.Position.X, st.Position.Y, st.Size.X, st.Size.Y, st.Confidence)
}

// CapVelocity rescales v so its magnitude does not exceed limit, keeping direction.
func CapVelocity(v r2.Vec, limit float64) r2.Vec {
	mag := r2.Norm(v)
	if mag <= limit || mag == 0 {
		return v
	}
	return r2.Scale(limit/mag, v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
