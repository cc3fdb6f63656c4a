package models

type TrackingStatus string

const (
	TrackingStatusIdle     TrackingStatus = "idle"
	TrackingStatusTracking TrackingStatus = "tracking"
	TrackingStatusLost     TrackingStatus = "lost"
)

// StatusForConfidence maps a confidence to tracking/lost. Callers that have
// never seen a detection report idle themselves.
func StatusForConfidence(confidence, threshold float64) TrackingStatus {
	if confidence > threshold {
		return TrackingStatusTracking
	}
	return TrackingStatusLost
}

type LockEventKind string

const (
	LockAcquired  LockEventKind = "lock_acquired"
	LockSwitched  LockEventKind = "lock_switched"
	LockReleased  LockEventKind = "lock_released"
	StatusChanged LockEventKind = "status_changed"
)

// LockEvent records a change in what a session is tracking.
type LockEvent struct {
	SessionID   string         `json:"session_id"`
	SubjectID   string         `json:"subject_id"`
	Kind        LockEventKind  `json:"kind"`
	Status      TrackingStatus `json:"status,omitempty"`
	TimestampMs float64        `json:"timestamp_ms"`
}
