package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/lineup/internal/backend"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/manager"
)

// UpdateBackendRequest enables or disables a backend
type UpdateBackendRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// BackendListResponse lists the registered backends
type BackendListResponse struct {
	Backends []backend.Info `json:"backends"`
}

// BackendHandler handles backend directory requests
type BackendHandler struct {
	backends *backend.Directory
	manager  *manager.Manager
}

// NewBackendHandler creates a new backend handler instance
func NewBackendHandler(backends *backend.Directory, m *manager.Manager) *BackendHandler {
	return &BackendHandler{backends: backends, manager: m}
}

// ListBackends handles GET /api/backends
func (h *BackendHandler) ListBackends(c *gin.Context) {
	c.JSON(http.StatusOK, BackendListResponse{Backends: h.backends.Backends()})
}

// UpdateBackend handles PUT /api/backends/:id
func (h *BackendHandler) UpdateBackend(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid backend ID format")
		return
	}

	var req UpdateBackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body")
		return
	}

	if err := h.backends.SetEnabled(id, *req.Enabled); err != nil {
		writeError(c, err, "update backend")
		return
	}

	// Membership depends on the enabled set, so reconcile right away
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	if err := h.manager.Refresh(ctx); err != nil {
		logger.Log.Warn().
			Err(err).
			Int("backend_id", id).
			Msg("Refresh after backend change failed")
	}

	for _, info := range h.backends.Backends() {
		if info.ID == id {
			c.JSON(http.StatusOK, info)
			return
		}
	}
	writeError(c, backend.ErrBackendNotFound, "find backend")
}

// SetupBackendRoutes registers backend directory routes
func SetupBackendRoutes(apiGroup *gin.RouterGroup, backends *backend.Directory, m *manager.Manager) {
	handler := NewBackendHandler(backends, m)

	apiGroup.GET("/backends", handler.ListBackends)
	apiGroup.PUT("/backends/:id", handler.UpdateBackend)
}
