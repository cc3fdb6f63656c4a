package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

// SessionRecord is the persisted summary of one tracking session.
type SessionRecord struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	VideoWidth  int           `json:"video_width" db:"video_width"`
	VideoHeight int           `json:"video_height" db:"video_height"`
	SubjectID   string        `json:"subject_id" db:"subject_id"`
	Status      SessionStatus `json:"status" db:"status"`
	ArchiveKey  string        `json:"archive_key,omitempty" db:"archive_key"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	ClosedAt    *time.Time    `json:"closed_at,omitempty" db:"closed_at"`
}

// TrackingArchive is the document written to object storage when a session
// closes.
type TrackingArchive struct {
	SessionID   uuid.UUID      `json:"session_id"`
	SubjectID   string         `json:"subject_id"`
	VideoWidth  int            `json:"video_width"`
	VideoHeight int            `json:"video_height"`
	History     []HistoryEntry `json:"history"`
	Events      []LockEvent    `json:"events"`
	Ingested    int            `json:"ingested"`
	Rejected    int            `json:"rejected"`
	ClosedAt    time.Time      `json:"closed_at"`
}
