package handler

import (
	"net/http"
	"strconv"

	"github.com/mcoot/rublocks/internal/api/middleware"
	"github.com/mcoot/rublocks/internal/api/request"
	"github.com/mcoot/rublocks/internal/api/response"
	"github.com/mcoot/rublocks/internal/services/stats"
)

// StatsHandler handles session reporting and the leaderboard
type StatsHandler struct {
	statsService *stats.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *stats.Service) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// SubmitSession handles POST /api/v1/sessions
func (h *StatsHandler) SubmitSession(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.SubmitSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	outcome, err := h.statsService.RecordSession(r.Context(), player.ID, req.Delta())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionResultFromOutcome(outcome))
}

// Leaderboard handles GET /api/v1/leaderboard?limit=N
func (h *StatsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.statsService.Leaderboard(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardFromModel(entries))
}
