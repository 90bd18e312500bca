package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/lineup/internal/backend"
	"github.com/stwalsh4118/lineup/internal/channelgroup"
	"github.com/stwalsh4118/lineup/internal/events"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/manager"
	"github.com/stwalsh4118/lineup/internal/policy"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: message})
}

// writeError maps domain errors to HTTP responses
func writeError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, manager.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Channel group not found"})
	case errors.Is(err, backend.ErrBackendNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Backend not found"})
	case errors.Is(err, manager.ErrGroupExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "duplicate_name", Message: "A channel group with this name already exists"})
	case errors.Is(err, channelgroup.ErrAlreadyMember):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already_member", Message: "Channel is already in the group"})
	case errors.Is(err, channelgroup.ErrNotMember):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_member", Message: "Channel is not in the group"})
	case errors.Is(err, channelgroup.ErrUnknownChannel):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown_channel", Message: "Channel not found"})
	case errors.Is(err, manager.ErrNotUserGroup):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not_user_group", Message: "Only user-defined groups can be changed this way"})
	case errors.Is(err, manager.ErrInvalidGroupName):
		badRequest(c, "invalid_name", "Group name must not be empty")
	case errors.Is(err, events.ErrNoEvent):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no_event", Message: "No event recorded for this group"})
	case errors.Is(err, policy.ErrUnknownSetting):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown_setting", Message: "Unknown setting"})
	case errors.Is(err, manager.ErrNotStarted), errors.Is(err, manager.ErrManagerStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable", Message: "Channel groups are not loaded"})
	default:
		logger.Log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Msg("Failed to " + action)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to " + action,
		})
	}
}
