package vision

import (
	"math"

	"github.com/your-org/spotlight/internal/models"
)

// MostProminent picks the candidate with the largest width*height*confidence.
// Ties keep the earliest candidate.
func MostProminent(dets []models.Detection) (models.Detection, bool) {
	best := -1
	bestScore := -1.0
	for i, d := range dets {
		score := d.Box.Area() * d.Box.Confidence
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return models.Detection{}, false
	}
	return dets[best], true
}

// NearestTo picks the candidate whose centre is closest to a normalized point.
func NearestTo(dets []models.Detection, x, y float64) (models.Detection, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, d := range dets {
		dist := math.Hypot(d.Box.CenterX-x, d.Box.CenterY-y)
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return models.Detection{}, false
	}
	return dets[best], true
}
