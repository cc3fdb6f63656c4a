// Package guards validates and repairs box coordinates at pipeline
// boundaries. Nothing here panics: violations are logged, counted and, where
// possible, repaired so the overlay keeps rendering.
package guards

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/internal/observability"
)

var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrTemporalAnomaly = errors.New("temporal anomaly")
)

const (
	// CenterTolerance bounds |centerX - (x + width/2)| for a consistent box.
	CenterTolerance = 0.01

	flipLow  = 0.1
	flipHigh = 0.9
)

// Check names reported in diagnostics and metrics.
const (
	CheckCenterX    = "center_x_mismatch"
	CheckCenterY    = "center_y_mismatch"
	CheckTopLeftX   = "top_left_x_mismatch"
	CheckTopLeftY   = "top_left_y_mismatch"
	CheckInversion  = "horizontal_inversion"
	CheckCenterMiss = "center_missing"
)

// ValidateNoFlip checks that the centre and top-left aliases agree with
// x/y/width/height and that centerX and x are not on opposite edges of the
// frame. It returns false and logs a diagnostic on any failure.
func ValidateNoFlip(box models.RawBox, stage string) bool {
	violations := Violations(box)
	if len(violations) == 0 {
		return true
	}

	for _, v := range violations {
		observability.GuardViolations.WithLabelValues(stage, v).Inc()
	}
	slog.Error("coordinate invariant violated",
		"stage", stage,
		"box", DumpBox(box),
		"violations", violations,
	)
	return false
}

// Violations lists the failed checks without logging.
func Violations(box models.RawBox) []string {
	var out []string

	if present(box.CenterX) && present(box.X) && present(box.Width) {
		if math.Abs(*box.CenterX-(*box.X+*box.Width/2)) > CenterTolerance {
			out = append(out, CheckCenterX)
		}
	}
	if present(box.CenterY) && present(box.Y) && present(box.Height) {
		if math.Abs(*box.CenterY-(*box.Y+*box.Height/2)) > CenterTolerance {
			out = append(out, CheckCenterY)
		}
	}
	if present(box.TopLeftX) && present(box.X) {
		if math.Abs(*box.TopLeftX-*box.X) > CenterTolerance {
			out = append(out, CheckTopLeftX)
		}
	}
	if present(box.TopLeftY) && present(box.Y) {
		if math.Abs(*box.TopLeftY-*box.Y) > CenterTolerance {
			out = append(out, CheckTopLeftY)
		}
	}
	if present(box.CenterX) && present(box.X) {
		cx, x := *box.CenterX, *box.X
		if (cx < flipLow && x > flipHigh) || (cx > flipHigh && x < flipLow) {
			out = append(out, CheckInversion)
		}
	}
	return out
}

// AssertCenterCoordinatesPresent warns when a box reaches a boundary without
// the centre coordinates it should have carried through.
func AssertCenterCoordinatesPresent(box models.RawBox, stage string) bool {
	if present(box.CenterX) && present(box.CenterY) {
		return true
	}
	observability.GuardViolations.WithLabelValues(stage, CheckCenterMiss).Inc()
	slog.Warn("center coordinates missing",
		"stage", stage,
		"box", DumpBox(box),
	)
	return false
}

// EnsureCompleteBox fills missing centre and top-left fields from
// x/y/width/height. Fields already present are kept as-is. Missing or
// non-finite essentials make the box unusable.
func EnsureCompleteBox(box models.RawBox) (models.BoundingBox, error) {
	essentials := []struct {
		name string
		v    *float64
	}{
		{"x", box.X},
		{"y", box.Y},
		{"width", box.Width},
		{"height", box.Height},
	}
	for _, e := range essentials {
		if !present(e.v) {
			return models.BoundingBox{}, fmt.Errorf("%w: missing %s", ErrMalformedInput, e.name)
		}
	}
	if *box.Width < 0 || *box.Height < 0 {
		return models.BoundingBox{}, fmt.Errorf("%w: negative size %vx%v", ErrMalformedInput, *box.Width, *box.Height)
	}

	x, y, w, h := *box.X, *box.Y, *box.Width, *box.Height
	out := models.BoundingBox{
		X:          x,
		Y:          y,
		Width:      w,
		Height:     h,
		CenterX:    valueOr(box.CenterX, x+w/2),
		CenterY:    valueOr(box.CenterY, y+h/2),
		TopLeftX:   valueOr(box.TopLeftX, x),
		TopLeftY:   valueOr(box.TopLeftY, y),
		Confidence: 1.0,
	}
	if present(box.Confidence) {
		out.Confidence = math.Max(0, math.Min(1, *box.Confidence))
	}
	return out, nil
}

// RepairFromCenter rebuilds the corner fields around the box centre.
// Centres are the trusted coordinates when the two disagree.
func RepairFromCenter(box models.BoundingBox) models.BoundingBox {
	return models.BoxFromCenter(box.CenterX, box.CenterY, box.Width, box.Height, box.Confidence)
}

// DumpBox renders the present fields of a box for diagnostics.
func DumpBox(box models.RawBox) map[string]float64 {
	out := make(map[string]float64, 9)
	fields := map[string]*float64{
		"x":          box.X,
		"y":          box.Y,
		"width":      box.Width,
		"height":     box.Height,
		"centerX":    box.CenterX,
		"centerY":    box.CenterY,
		"topLeftX":   box.TopLeftX,
		"topLeftY":   box.TopLeftY,
		"confidence": box.Confidence,
	}
	for k, v := range fields {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func valueOr(v *float64, fallback float64) float64 {
	if present(v) {
		return *v
	}
	return fallback
}
