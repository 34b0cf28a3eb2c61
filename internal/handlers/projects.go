package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frontsight/frontsight/internal/models"
	"github.com/frontsight/frontsight/internal/service"
	"github.com/frontsight/frontsight/internal/store"
)

// RegisterProjectRoutes registers project CRUD and API-key rotation.
//
// POST   /api/projects
// GET    /api/projects
// GET    /api/projects/:id
// PATCH  /api/projects/:id
// POST   /api/projects/:id/rotate-key
// DELETE /api/projects/:id
func RegisterProjectRoutes(r *gin.RouterGroup, projects *service.ProjectService) {
	r.POST("", func(c *gin.Context) {
		var req models.ProjectCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "name required"})
			return
		}

		project, err := projects.Create(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "project insert failed"})
			return
		}
		c.JSON(http.StatusCreated, project)
	})

	r.GET("", func(c *gin.Context) {
		list, err := projects.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "project query failed"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	r.GET("/:id", func(c *gin.Context) {
		id, ok := projectIDParam(c)
		if !ok {
			return
		}
		project, err := projects.Get(c.Request.Context(), id)
		if err != nil {
			respondProjectError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	})

	r.PATCH("/:id", func(c *gin.Context) {
		id, ok := projectIDParam(c)
		if !ok {
			return
		}
		var patch models.ProjectPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid patch body"})
			return
		}

		project, err := projects.Update(c.Request.Context(), id, patch)
		if errors.Is(err, service.ErrInvalidArgument) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			respondProjectError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	})

	r.POST("/:id/rotate-key", func(c *gin.Context) {
		id, ok := projectIDParam(c)
		if !ok {
			return
		}
		project, err := projects.RotateKey(c.Request.Context(), id)
		if err != nil {
			respondProjectError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	})

	r.DELETE("/:id", func(c *gin.Context) {
		id, ok := projectIDParam(c)
		if !ok {
			return
		}
		if err := projects.Delete(c.Request.Context(), id); err != nil {
			respondProjectError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func respondProjectError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "project operation failed"})
}
