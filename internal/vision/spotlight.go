package vision

import (
	"math"

	"github.com/your-org/spotlight/internal/config"
	"github.com/your-org/spotlight/internal/models"
)

const minSpotlightRadius = 50.0

// Spotlight is the painter-facing description of the highlight in container
// pixels. Nothing here touches image data.
type Spotlight struct {
	Effect    string
	CenterX   float64
	CenterY   float64
	Radius    float64
	Feather   float64
	Intensity float64
}

// NewSpotlight sizes the highlight around a pixel box: 80% of the larger box
// side, never below 50px or the configured radius.
func NewSpotlight(box models.PixelBox, cfg config.SpotlightConfig) Spotlight {
	base := math.Max(minSpotlightRadius, 0.8*math.Max(box.Width, box.Height))
	return Spotlight{
		Effect:    cfg.Effect,
		CenterX:   box.CenterX,
		CenterY:   box.CenterY,
		Radius:    math.Max(base, cfg.Radius),
		Feather:   cfg.Feather,
		Intensity: cfg.Intensity,
	}
}

// Brightness returns the multiplier a painter applies at (x, y): 1 inside
// the lit area, cfg.Intensity far outside it, with a linear ramp across the
// feather band.
func (s Spotlight) Brightness(x, y float64) float64 {
	switch s.Effect {
	case config.EffectBeam:
		return s.ramp(math.Abs(x-s.CenterX), s.Radius/2, s.Radius/2+s.Feather)
	case config.EffectGradient:
		d := math.Hypot(x-s.CenterX, y-s.CenterY)
		g := 1 - math.Min(1, d/(s.Radius*1.5))
		return s.Intensity + (1-s.Intensity)*g
	default:
		d := math.Hypot(x-s.CenterX, y-s.CenterY)
		return s.ramp(d, math.Max(1, s.Radius-s.Feather), s.Radius+s.Feather)
	}
}

func (s Spotlight) ramp(d, inner, outer float64) float64 {
	switch {
	case d <= inner:
		return 1
	case d <= outer && outer > inner:
		return 1 - (d-inner)/(outer-inner)*(1-s.Intensity)
	default:
		return s.Intensity
	}
}
