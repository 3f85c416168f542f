package handler

import (
	"net/http"
	"time"

	"github.com/mcoot/rublocks/internal/api/middleware"
	"github.com/mcoot/rublocks/internal/events"
)

// EventsHandler streams a player's notifications
type EventsHandler struct {
	hubManager *events.HubManager
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hubManager *events.HubManager) *EventsHandler {
	return &EventsHandler{hubManager: hubManager}
}

// Stream handles GET /api/v1/players/me/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	// Streams outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	hub := h.hubManager.GetOrCreateHub(player.ID)
	events.Serve(w, r, hub, player.ID)
}
