package dto

import "github.com/your-org/spotlight/internal/models"

// Detection is one player record from the detection collaborator.
// TimestampMs is video-relative; when nil the enclosing frame's timestamp is used.
type Detection struct {
	ID          string   `json:"id"`
	TimestampMs *float64 `json:"timestampMs,omitempty"`
	models.RawBox
}

// DetectionFrame is a batch of detections sampled from one video frame.
type DetectionFrame struct {
	SessionID   string      `json:"sessionId"`
	TimestampMs float64     `json:"timestampMs"`
	Players     []Detection `json:"players"`
}

type IngestResponse struct {
	Accepted  int    `json:"accepted"`
	Rejected  int    `json:"rejected"`
	SubjectID string `json:"subject_id,omitempty"`
	Tracked   bool   `json:"tracked"`
}
