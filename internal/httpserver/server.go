package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/frontsight/frontsight/internal/config"
	"github.com/frontsight/frontsight/internal/handlers"
	"github.com/frontsight/frontsight/internal/service"
	"github.com/frontsight/frontsight/internal/store"
)

// RequestID tags every request with an id for log correlation, honoring a
// client-supplied X-Request-ID when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// NewRouter wires public endpoints and the project/event/stats APIs.
// Public: /health, /ready
// APIs: /api/projects, /api/events, /api/stats
func NewRouter(cfg config.Config, st *store.SQLStore) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	projectService := service.NewProjectService(st)
	eventService := service.NewEventService(st)

	api := r.Group("/api")
	handlers.RegisterProjectRoutes(api.Group("/projects"), projectService)
	handlers.RegisterEventRoutes(api.Group("/events"), eventService, projectService)
	handlers.RegisterStatsRoutes(api.Group("/stats"), eventService, projectService)

	return r
}
