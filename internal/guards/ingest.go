package guards

import (
	"fmt"
	"math"
	"strings"

	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/pkg/dto"
)

// MaxVideoTimestampMs is the largest video-relative timestamp accepted (24h).
// Anything above it is taken to be a wall-clock value from the wrong time base.
const MaxVideoTimestampMs = 24 * 60 * 60 * 1000

// ValidTimestamp accepts finite, non-negative, video-relative milliseconds.
// Zero is the start of the video.
func ValidTimestamp(tsMs float64) error {
	switch {
	case math.IsNaN(tsMs) || math.IsInf(tsMs, 0):
		return fmt.Errorf("%w: non-finite timestamp", ErrTemporalAnomaly)
	case tsMs < 0:
		return fmt.Errorf("%w: negative timestamp %v", ErrTemporalAnomaly, tsMs)
	case tsMs > MaxVideoTimestampMs:
		return fmt.Errorf("%w: timestamp %v is not video-relative", ErrTemporalAnomaly, tsMs)
	}
	return nil
}

// Sanitize turns a wire record into a validated detection. Records without an
// id or essential coordinates are dropped; a box whose aliases disagree is
// repaired around its centre.
func Sanitize(rec dto.Detection, frameTsMs float64) (models.Detection, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return models.Detection{}, fmt.Errorf("%w: missing id", ErrMalformedInput)
	}

	ts := frameTsMs
	if rec.TimestampMs != nil {
		ts = *rec.TimestampMs
	}
	if err := ValidTimestamp(ts); err != nil {
		return models.Detection{}, fmt.Errorf("detection %s: %w", id, err)
	}

	AssertCenterCoordinatesPresent(rec.RawBox, "ingest")

	box, err := EnsureCompleteBox(rec.RawBox)
	if err != nil {
		return models.Detection{}, fmt.Errorf("detection %s: %w", id, err)
	}
	if !ValidateNoFlip(rec.RawBox, "ingest") {
		box = RepairFromCenter(box)
	}

	return models.Detection{ID: id, TimestampMs: ts, Box: box}, nil
}
