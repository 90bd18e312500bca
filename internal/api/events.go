package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/lineup/internal/events"
	"github.com/stwalsh4118/lineup/internal/logger"
)

// EventsHandler streams group change events to HTTP clients
type EventsHandler struct {
	bus  *events.Bus
	last events.LastEventStore
}

// NewEventsHandler creates a new events handler. last defaults to the bus.
func NewEventsHandler(bus *events.Bus, last events.LastEventStore) *EventsHandler {
	if last == nil {
		last = bus
	}
	return &EventsHandler{bus: bus, last: last}
}

// Stream handles GET /api/events as a server-sent event stream
func (h *EventsHandler) Stream(c *gin.Context) {
	ch, cancel := h.bus.Subscribe()
	defer cancel()

	// the stream outlives the server write timeout
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	logger.Log.Debug().
		Str("client_ip", c.ClientIP()).
		Msg("Event stream opened")

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Kind), event)
			return true
		case <-ctx.Done():
			return false
		}
	})

	logger.Log.Debug().
		Str("client_ip", c.ClientIP()).
		Msg("Event stream closed")
}

// LastEvent handles GET /api/groups/:id/last-event
func (h *EventsHandler) LastEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid_id", "Invalid group ID format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	event, err := h.last.LastEvent(ctx, id)
	if err != nil {
		writeError(c, err, "read last group event")
		return
	}
	c.JSON(http.StatusOK, event)
}

// SetupEventRoutes registers event routes
func SetupEventRoutes(apiGroup *gin.RouterGroup, bus *events.Bus, last events.LastEventStore) {
	handler := NewEventsHandler(bus, last)

	apiGroup.GET("/events", handler.Stream)
	apiGroup.GET("/groups/:id/last-event", handler.LastEvent)
}
