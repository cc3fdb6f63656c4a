package vision

import (
	"log/slog"
	"time"

	"github.com/your-org/spotlight/internal/config"
	"github.com/your-org/spotlight/internal/geometry"
	"github.com/your-org/spotlight/internal/guards"
	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/internal/observability"
)

// Frame is everything the painter needs for one render tick.
type Frame struct {
	Estimate

	SubjectID   string
	TimestampMs float64
	Pixels      models.PixelBox
	Spotlight   Spotlight
	// Valid is false when the render-stage guard had to repair the box or the
	// render rect is unknown.
	Valid bool
}

// Pipeline turns tracker estimates into render frames:
// estimate → guard → pixels → guard → spotlight.
type Pipeline struct {
	cfg config.SpotlightConfig
}

func NewPipeline(cfg config.SpotlightConfig) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Render queries tr for subjectID at tsMs and places the result in rect.
// It reports false only when the tracker has nothing for the subject.
func (p *Pipeline) Render(tr *Tracker, subjectID string, tsMs float64, rect models.VideoRenderRect) (Frame, bool) {
	start := time.Now()

	est, ok := tr.BoxAt(subjectID, tsMs)
	if !ok {
		return Frame{}, false
	}

	valid := true
	if !guards.ValidateNoFlip(est.Box.Raw(), "estimate") {
		est.Box = guards.RepairFromCenter(est.Box)
		valid = false
	}

	frame := Frame{
		SubjectID:   subjectID,
		TimestampMs: tsMs,
		Estimate:    est,
	}

	if geometry.IsEmpty(rect) {
		slog.Debug("render without viewport", "subject_id", subjectID)
		return frame, true
	}

	pixels := geometry.NormalizedToPixels(est.Box, rect)
	back := geometry.PixelsToNormalized(pixels, rect)
	if !guards.ValidateNoFlip(back.Raw(), "render") {
		pixels = geometry.NormalizedToPixels(guards.RepairFromCenter(back), rect)
		valid = false
	}

	frame.Pixels = pixels
	frame.Spotlight = NewSpotlight(pixels, p.cfg)
	frame.Valid = valid

	observability.EstimateDuration.WithLabelValues("render").Observe(time.Since(start).Seconds())
	return frame, true
}
