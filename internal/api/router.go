package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/spotlight/internal/api/handlers"
	"github.com/your-org/spotlight/internal/api/ws"
	"github.com/your-org/spotlight/internal/auth"
	"github.com/your-org/spotlight/internal/session"
)

type RouterConfig struct {
	APIKey  string
	Manager *session.Manager
	Hub     *ws.Hub
	// History is nil when Postgres is not configured.
	History handlers.HistoryStore
	// Checks are run by /readyz, one per configured dependency.
	Checks map[string]handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// Sessions
	sessionH := handlers.NewSessionHandler(cfg.Manager)
	v1.POST("/sessions", sessionH.Create)
	v1.GET("/sessions", sessionH.List)
	v1.GET("/sessions/:id", sessionH.Get)
	v1.DELETE("/sessions/:id", sessionH.Close)
	v1.POST("/sessions/:id/reset", sessionH.Reset)
	v1.PUT("/sessions/:id/viewport", sessionH.SetViewport)
	v1.POST("/sessions/:id/detections", sessionH.Detections)
	v1.POST("/sessions/:id/select", sessionH.Select)

	// Render-time queries
	v1.GET("/sessions/:id/box", sessionH.Box)
	v1.GET("/sessions/:id/render", sessionH.Render)
	v1.GET("/sessions/:id/archive", sessionH.Archive)

	// Persisted history
	if cfg.History != nil {
		historyH := handlers.NewHistoryHandler(cfg.History)
		v1.GET("/history", historyH.List)
		v1.GET("/history/:id", historyH.Get)
	}

	return r
}
