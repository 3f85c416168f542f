package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rublocks/internal/api/handler"
	"github.com/mcoot/rublocks/internal/api/middleware"
	"github.com/mcoot/rublocks/internal/events"
	"github.com/mcoot/rublocks/internal/services/admin"
	"github.com/mcoot/rublocks/internal/services/auth"
	"github.com/mcoot/rublocks/internal/services/stats"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger       *slog.Logger
	AuthService  *auth.Service
	StatsService *stats.Service
	AdminService *admin.Service
	HubManager   *events.HubManager
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.StatsService)
	statsHandler := handler.NewStatsHandler(cfg.StatsService)
	adminHandler := handler.NewAdminHandler(cfg.AdminService)
	eventsHandler := handler.NewEventsHandler(cfg.HubManager)

	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// Logging is outermost so recovered panics are still logged with their status
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Public routes
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/leaderboard", statsHandler.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Player routes are wrapped individually so that "me" is matched before {id}
	api.Handle("/players/logout", authMiddleware(http.HandlerFunc(playerHandler.Logout))).Methods(http.MethodPost)
	api.Handle("/players/me", authMiddleware(http.HandlerFunc(playerHandler.GetMe))).Methods(http.MethodGet)
	api.Handle("/players/me/stats", authMiddleware(http.HandlerFunc(playerHandler.GetMyStats))).Methods(http.MethodGet)
	api.Handle("/players/me/events", authMiddleware(http.HandlerFunc(eventsHandler.Stream))).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/stats", playerHandler.GetPlayerStats).Methods(http.MethodGet)

	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("", statsHandler.SubmitSession).Methods(http.MethodPost)

	adminRoutes := api.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(authMiddleware)
	adminRoutes.Use(middleware.RequireAdmin)
	adminRoutes.HandleFunc("/dashboard", adminHandler.Dashboard).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/players", adminHandler.ListPlayers).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/players/{id}", adminHandler.DeletePlayer).Methods(http.MethodDelete)
	adminRoutes.HandleFunc("/stats/reset", adminHandler.ResetStats).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/sessions", adminHandler.ClearSessions).Methods(http.MethodDelete)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
