package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/spotlight/internal/models"
)

// HistoryStore reads persisted sessions. *storage.PostgresStore satisfies it.
type HistoryStore interface {
	ListSessions(ctx context.Context, limit int) ([]models.SessionRecord, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error)
	ListLockEvents(ctx context.Context, id uuid.UUID) ([]models.LockEvent, error)
}

type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// List returns recorded sessions, newest first.
func (h *HistoryHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.store.ListSessions(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []models.SessionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": records, "total": len(records)})
}

// Get returns one recorded session with its lock events.
func (h *HistoryHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rec, err := h.store.GetSession(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	events, err := h.store.ListLockEvents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []models.LockEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"session": rec, "events": events})
}
