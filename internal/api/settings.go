package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/policy"
)

// UpdateSettingRequest represents a request to change a numbering flag
type UpdateSettingRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// SettingsResponse lists the numbering flags
type SettingsResponse struct {
	Settings map[string]bool `json:"settings"`
}

// SettingsHandler handles numbering policy requests
type SettingsHandler struct {
	policy *policy.Provider
}

// NewSettingsHandler creates a new settings handler instance
func NewSettingsHandler(p *policy.Provider) *SettingsHandler {
	return &SettingsHandler{policy: p}
}

// ListSettings handles GET /api/settings
func (h *SettingsHandler) ListSettings(c *gin.Context) {
	c.JSON(http.StatusOK, SettingsResponse{Settings: h.policy.Flags()})
}

// UpdateSetting handles PUT /api/settings/:key
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	key := c.Param("key")

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	// Subscribed groups renumber before Set returns
	if err := h.policy.Set(ctx, key, *req.Value); err != nil {
		writeError(c, err, "update setting")
		return
	}

	logger.Log.Info().
		Str("key", key).
		Bool("value", *req.Value).
		Msg("Numbering setting updated")

	c.JSON(http.StatusOK, SettingsResponse{Settings: h.policy.Flags()})
}

// SetupSettingsRoutes registers numbering policy routes
func SetupSettingsRoutes(apiGroup *gin.RouterGroup, p *policy.Provider) {
	handler := NewSettingsHandler(p)

	apiGroup.GET("/settings", handler.ListSettings)
	apiGroup.PUT("/settings/:key", handler.UpdateSetting)
}
