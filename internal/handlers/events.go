package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frontsight/frontsight/internal/auth"
	"github.com/frontsight/frontsight/internal/models"
	"github.com/frontsight/frontsight/internal/service"
)

// parseRFC3339 parses an RFC3339 timestamp and normalizes it to UTC.
func parseRFC3339(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// projectIDParam parses the :id path segment.
func projectIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return 0, false
	}
	return id, true
}

// RegisterEventRoutes registers the ingestion and listing endpoints.
//
// POST /api/events
// - Requires X-API-Key; the event is bound to the resolved project
// - Durable: returns 201 only after the store write completes
//
// GET /api/events/project/:id
// - Filtered, paginated listing ordered by occurred_at descending
func RegisterEventRoutes(r *gin.RouterGroup, events *service.EventService, projects *service.ProjectService) {
	r.POST("", auth.APIKeyMiddleware(projects), func(c *gin.Context) {
		project, ok := auth.Project(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "project not resolved"})
			return
		}

		var req models.EventCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid event body"})
			return
		}

		event, err := events.RecordEvent(c.Request.Context(), project, req)
		if errors.Is(err, service.ErrInvalidArgument) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event insert failed"})
			return
		}

		c.JSON(http.StatusCreated, event)
	})

	r.GET("/project/:id", func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		// Listing never proceeds against an unresolved project.
		if !requireProject(c, projects, projectID) {
			return
		}

		params, ok := eventQueryParams(c)
		if !ok {
			return
		}

		page, err := events.ListEvents(c.Request.Context(), projectID, params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event query failed"})
			return
		}
		c.JSON(http.StatusOK, page)
	})
}

// eventQueryParams builds listing filters from the query string. Absent
// parameters stay nil and contribute no filter.
func eventQueryParams(c *gin.Context) (models.EventQueryParams, bool) {
	var params models.EventQueryParams

	if v := c.Query("event_type"); v != "" {
		eventType, ok := models.ParseEventType(v)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event_type"})
			return params, false
		}
		params.EventType = &eventType
	}
	params.UserID = optionalQuery(c, "user_id")
	params.SessionID = optionalQuery(c, "session_id")
	params.Environment = optionalQuery(c, "environment")
	params.Release = optionalQuery(c, "release")
	params.Search = optionalQuery(c, "search")

	if v := c.Query("occurred_from"); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "occurred_from must be RFC3339"})
			return params, false
		}
		params.OccurredFrom = &t
	}
	if v := c.Query("occurred_to"); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "occurred_to must be RFC3339"})
			return params, false
		}
		params.OccurredTo = &t
	}

	var err error
	params.Page, err = strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be an integer"})
		return params, false
	}
	params.PageSize, err = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be an integer"})
		return params, false
	}

	return params, true
}

func optionalQuery(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}
