package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircchat/internal/core"
)

// AdminHandlers exposes read-only views of live hub state.
type AdminHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(hub *core.Hub, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		hub: hub,
		log: logger,
	}
}

// ListChannels lists channels sorted by name.
// GET /channels
func (h *AdminHandlers) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, channelsResponse(h.hub.ChannelSnapshot()))
}

// ListSessions lists live sessions by connect time.
// GET /sessions
func (h *AdminHandlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, sessionsResponse(h.hub.SessionSnapshot()))
}
