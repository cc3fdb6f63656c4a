package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/spotlight/internal/guards"
	"github.com/your-org/spotlight/internal/session"
	"github.com/your-org/spotlight/internal/storage"
	"github.com/your-org/spotlight/internal/vision"
	"github.com/your-org/spotlight/pkg/dto"
)

type SessionHandler struct {
	manager *session.Manager
}

func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	s, err := h.manager.Create(c.Request.Context(), session.CreateOptions{
		VideoWidth:      req.VideoWidth,
		VideoHeight:     req.VideoHeight,
		ContainerWidth:  req.ContainerWidth,
		ContainerHeight: req.ContainerHeight,
		AutoSelect:      req.AutoSelect,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sessionToResponse(s.Info()))
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions := h.manager.List()
	resp := dto.SessionListResponse{
		Sessions: make([]dto.SessionResponse, 0, len(sessions)),
		Total:    len(sessions),
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, sessionToResponse(s.Info()))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(s.Info()))
}

func (h *SessionHandler) Close(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	archive, err := h.manager.Close(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         id,
		"status":     "closed",
		"subject_id": archive.SubjectID,
		"ingested":   archive.Ingested,
		"rejected":   archive.Rejected,
	})
}

func (h *SessionHandler) Reset(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.Reset()
	c.JSON(http.StatusOK, sessionToResponse(s.Info()))
}

func (h *SessionHandler) SetViewport(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req dto.ViewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rect := s.SetViewport(req.VideoWidth, req.VideoHeight, req.ContainerWidth, req.ContainerHeight)
	c.JSON(http.StatusOK, gin.H{"render_rect": rect})
}

func (h *SessionHandler) Detections(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var frame dto.DetectionFrame
	if err := c.ShouldBindJSON(&frame); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frame.SessionID = s.ID.String()

	resp, err := s.IngestFrame(frame)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *SessionHandler) Select(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req dto.SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch {
	case req.SubjectID != "":
		if err := s.SelectSubject(req.SubjectID); err != nil {
			writeError(c, err)
			return
		}
	case req.ClickX != nil && req.ClickY != nil:
		if _, err := s.SelectAt(*req.ClickX, *req.ClickY); err != nil {
			writeError(c, err)
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id or click_x/click_y required"})
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(s.Info()))
}

func (h *SessionHandler) Box(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	t, ok := parseTimestamp(c)
	if !ok {
		return
	}
	subjectID := c.Query("subject_id")

	est, found := s.BoxAt(subjectID, t)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no estimate for subject"})
		return
	}
	if subjectID == "" {
		subjectID = s.Info().SubjectID
	}
	c.JSON(http.StatusOK, dto.BoxResponse{
		SubjectID: subjectID,
		T:         t,
		Box:       est.Box,
		Source:    string(est.Source),
		Status:    string(est.Status),
	})
}

func (h *SessionHandler) Render(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	t, ok := parseTimestamp(c)
	if !ok {
		return
	}

	frame, err := s.Render(t)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, FrameToResponse(frame))
}

func (h *SessionHandler) Archive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	archive, err := h.manager.Archive(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, archive)
}

func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	s, err := h.manager.Get(id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

// parseTimestamp reads the video-relative render time t in milliseconds.
func parseTimestamp(c *gin.Context) (float64, bool) {
	raw := c.Query("t")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "t (video-relative ms) is required"})
		return 0, false
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid t"})
		return 0, false
	}
	if err := guards.ValidTimestamp(t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return t, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, storage.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNoSubject), errors.Is(err, session.ErrNotTracking):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNoViewport),
		errors.Is(err, session.ErrNoCandidates):
		status = http.StatusConflict
	case errors.Is(err, session.ErrArchivesDisabled):
		status = http.StatusNotImplemented
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func sessionToResponse(info session.Info) dto.SessionResponse {
	return dto.SessionResponse{
		ID:         info.ID,
		SubjectID:  info.SubjectID,
		AutoSelect: info.AutoSelect,
		RenderRect: info.RenderRect,
		Status:     string(info.Status),
		Ingested:   info.Ingested,
		Rejected:   info.Rejected,
		CreatedAt:  info.CreatedAt.Format(time.RFC3339),
	}
}

// FrameToResponse converts a render frame to its wire form.
func FrameToResponse(f vision.Frame) dto.RenderResponse {
	return dto.RenderResponse{
		SubjectID: f.SubjectID,
		T:         f.TimestampMs,
		Box:       f.Box,
		Pixels:    f.Pixels,
		Spotlight: dto.SpotlightResponse{
			Effect:    f.Spotlight.Effect,
			CenterX:   f.Spotlight.CenterX,
			CenterY:   f.Spotlight.CenterY,
			Radius:    f.Spotlight.Radius,
			Feather:   f.Spotlight.Feather,
			Intensity: f.Spotlight.Intensity,
		},
		Source: string(f.Source),
		Status: string(f.Status),
		Valid:  f.Valid,
	}
}
