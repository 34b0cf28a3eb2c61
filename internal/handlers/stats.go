package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frontsight/frontsight/internal/service"
	"github.com/frontsight/frontsight/internal/store"
)

// RegisterStatsRoutes registers the aggregation endpoints.
//
// GET /api/stats/project/:id/summary?start=&end=
// GET /api/stats/project/:id/timeseries?start=&end=&granularity=
func RegisterStatsRoutes(r *gin.RouterGroup, events *service.EventService, projects *service.ProjectService) {
	r.GET("/project/:id/summary", func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		if !requireProject(c, projects, projectID) {
			return
		}
		start, end, ok := timeRangeParams(c)
		if !ok {
			return
		}

		summary, err := events.Summary(c.Request.Context(), projectID, start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "summary query failed"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	r.GET("/project/:id/timeseries", func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		if !requireProject(c, projects, projectID) {
			return
		}
		start, end, ok := timeRangeParams(c)
		if !ok {
			return
		}
		granularity := c.DefaultQuery("granularity", "day")

		buckets, err := events.Timeseries(c.Request.Context(), projectID, start, end, granularity)
		if errors.Is(err, service.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "granularity must be \"hour\" or \"day\""})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "timeseries query failed"})
			return
		}
		c.JSON(http.StatusOK, buckets)
	})
}

// requireProject rejects the request when the project does not exist.
func requireProject(c *gin.Context, projects *service.ProjectService, projectID int64) bool {
	if _, err := projects.Get(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "project lookup failed"})
		return false
	}
	return true
}

// timeRangeParams parses the optional start/end bounds.
func timeRangeParams(c *gin.Context) (start, end *time.Time, ok bool) {
	if v := c.Query("start"); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return nil, nil, false
		}
		start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return nil, nil, false
		}
		end = &t
	}
	return start, end, true
}
