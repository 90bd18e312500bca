package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/lineup/internal/backend"
	"github.com/stwalsh4118/lineup/internal/db"
	"github.com/stwalsh4118/lineup/internal/manager"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Groups   string                 `json:"groups"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       *db.DB
	manager  *manager.Manager
	backends *backend.Directory
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database *db.DB, m *manager.Manager, backends *backend.Directory) *HealthHandler {
	return &HealthHandler{db: database, manager: m, backends: backends}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Groups:  "loaded",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]interface{}),
	}

	if h.backends != nil {
		open := 0
		for _, info := range h.backends.Backends() {
			if info.Enabled && info.State == backend.StateOpen.String() {
				open++
			}
		}
		response.Details["backends_enabled"] = h.backends.EnabledBackendCount()
		response.Details["backends_unavailable"] = open
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	response.Database = "healthy"

	if h.manager == nil || !h.manager.IsStarted() {
		response.Status = "degraded"
		response.Groups = "not_loaded"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database *db.DB, m *manager.Manager, backends *backend.Directory) {
	handler := NewHealthHandler(database, m, backends)
	apiGroup.GET("/health", handler.Check)
}
