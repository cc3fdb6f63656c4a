package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/spotlight/internal/models"
)

type CreateSessionRequest struct {
	VideoWidth      int   `json:"video_width"`
	VideoHeight     int   `json:"video_height"`
	ContainerWidth  int   `json:"container_width"`
	ContainerHeight int   `json:"container_height"`
	AutoSelect      *bool `json:"auto_select,omitempty"`
}

type ViewportRequest struct {
	VideoWidth      int `json:"video_width" binding:"required"`
	VideoHeight     int `json:"video_height" binding:"required"`
	ContainerWidth  int `json:"container_width" binding:"required"`
	ContainerHeight int `json:"container_height" binding:"required"`
}

// SelectRequest picks a subject either by ID or by a pointer position in
// container pixels.
type SelectRequest struct {
	SubjectID string   `json:"subject_id,omitempty"`
	ClickX    *float64 `json:"click_x,omitempty"`
	ClickY    *float64 `json:"click_y,omitempty"`
}

type SessionResponse struct {
	ID         uuid.UUID              `json:"id"`
	SubjectID  string                 `json:"subject_id,omitempty"`
	AutoSelect bool                   `json:"auto_select"`
	RenderRect models.VideoRenderRect `json:"render_rect"`
	Status     string                 `json:"status"`
	Ingested   int                    `json:"ingested"`
	Rejected   int                    `json:"rejected"`
	CreatedAt  string                 `json:"created_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

type BoxResponse struct {
	SubjectID string             `json:"subject_id"`
	T         float64            `json:"t"`
	Box       models.BoundingBox `json:"box"`
	Source    string             `json:"source"`
	Status    string             `json:"status"`
}

// SpotlightResponse describes where and how large to paint the highlight.
type SpotlightResponse struct {
	Effect    string  `json:"effect"`
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	Radius    float64 `json:"radius"`
	Feather   float64 `json:"feather"`
	Intensity float64 `json:"intensity"`
}

type RenderResponse struct {
	SubjectID string             `json:"subject_id"`
	T         float64            `json:"t"`
	Box       models.BoundingBox `json:"box"`
	Pixels    models.PixelBox    `json:"pixels"`
	Spotlight SpotlightResponse  `json:"spotlight"`
	Source    string             `json:"source"`
	Status    string             `json:"status"`
	Valid     bool               `json:"valid"`
}

// WSEvent is a WebSocket message for real-time lock/status delivery.
type WSEvent struct {
	Type      string            `json:"type"` // lock_acquired, lock_switched, lock_released, status_changed
	SessionID uuid.UUID         `json:"session_id"`
	Data      *models.LockEvent `json:"data,omitempty"`
}
