package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/frontsight/frontsight/internal/models"
	"github.com/frontsight/frontsight/internal/service"
	"github.com/frontsight/frontsight/internal/store"
)

// projectCtxKey is the Gin context key used to store the resolved project.
const projectCtxKey = "auth_project"

// APIKeyMiddleware resolves X-API-Key to a project via the project store.
// A missing header is a validation failure (422); an unknown key is not
// found (404). Handlers behind this middleware can rely on Project(c).
func APIKeyMiddleware(projects *service.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "X-API-Key header required"})
			return
		}

		project, err := projects.GetByKey(c.Request.Context(), apiKey)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid API key"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "project lookup failed"})
			return
		}

		c.Set(projectCtxKey, project)
		c.Next()
	}
}

// Project returns the project resolved by APIKeyMiddleware.
func Project(c *gin.Context) (models.Project, bool) {
	v, ok := c.Get(projectCtxKey)
	if !ok {
		return models.Project{}, false
	}
	p, ok := v.(models.Project)
	return p, ok
}
