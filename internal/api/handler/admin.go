package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rublocks/internal/api/response"
	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/services/admin"
)

// AdminHandler handles operator endpoints
type AdminHandler struct {
	adminService *admin.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *admin.Service) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Dashboard handles GET /api/v1/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.adminService.Dashboard(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.DashboardFromModel(d))
}

// ListPlayers handles GET /api/v1/admin/players?q=
func (h *AdminHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.adminService.ListPlayers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerListFromModel(profiles))
}

// DeletePlayer handles DELETE /api/v1/admin/players/{id}
func (h *AdminHandler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := model.PlayerID(mux.Vars(r)["id"])

	if err := h.adminService.DeletePlayer(r.Context(), playerID); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// ResetStats handles POST /api/v1/admin/stats/reset
func (h *AdminHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	n, err := h.adminService.ResetAllStats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.StatsReset{PlayersReset: n})
}

// ClearSessions handles DELETE /api/v1/admin/sessions
func (h *AdminHandler) ClearSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.adminService.ClearGameSessions(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionsCleared{SessionsRemoved: n})
}
