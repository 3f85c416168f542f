package response

import (
	"time"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/services/auth"
	"github.com/mcoot/rublocks/internal/services/stats"
)

// Player represents a player in API responses
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Avatar    string    `json:"avatar"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	IsOnline  bool      `json:"is_online"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:        string(p.ID),
		Username:  p.Username,
		Email:     p.Email,
		Avatar:    p.Avatar,
		IsAdmin:   p.IsAdmin,
		IsOnline:  p.IsOnline,
		CreatedAt: p.CreatedAt,
		LastLogin: p.LastLogin,
	}
}

// PublicPlayerFromModel is PlayerFromModel without private fields
func PublicPlayerFromModel(p *model.Player) Player {
	pl := PlayerFromModel(p)
	pl.Email = ""
	pl.IsAdmin = false
	return pl
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player    `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Stats represents a player's statistics
type Stats struct {
	GamesPlayed   int64 `json:"games_played"`
	HighScore     int64 `json:"high_score"`
	TotalPlayTime int64 `json:"total_play_time"`
	Coins         int64 `json:"coins"`
	Experience    int64 `json:"experience"`
	Level         int64 `json:"level"`
}

// StatsFromModel converts model.PlayerStats
func StatsFromModel(s model.PlayerStats) Stats {
	return Stats{
		GamesPlayed:   s.GamesPlayed,
		HighScore:     s.HighScore,
		TotalPlayTime: s.TotalPlayTime,
		Coins:         s.Coins,
		Experience:    s.Experience,
		Level:         s.Level,
	}
}

// Profile is a player together with their stats
type Profile struct {
	Player Player `json:"player"`
	Stats  Stats  `json:"stats"`
}

// ProfileFromModel converts model.PlayerProfile, including private fields
func ProfileFromModel(p *model.PlayerProfile) Profile {
	return Profile{
		Player: PlayerFromModel(&p.Player),
		Stats:  StatsFromModel(p.Stats),
	}
}

// PublicProfileFromModel converts model.PlayerProfile for other players to see
func PublicProfileFromModel(p *model.PlayerProfile) Profile {
	return Profile{
		Player: PublicPlayerFromModel(&p.Player),
		Stats:  StatsFromModel(p.Stats),
	}
}

// SessionResult is the response after reporting a session
type SessionResult struct {
	Stats         Stats  `json:"stats"`
	LeveledUp     bool   `json:"leveled_up"`
	PreviousLevel int64  `json:"previous_level"`
	SessionID     string `json:"session_id,omitempty"`
	Version       int64  `json:"version"`
}

// SessionResultFromOutcome converts a stats.Outcome
func SessionResultFromOutcome(o *stats.Outcome) SessionResult {
	return SessionResult{
		Stats:         StatsFromModel(o.Stats),
		LeveledUp:     o.LeveledUp,
		PreviousLevel: o.PreviousLevel,
		SessionID:     string(o.SessionID),
		Version:       o.Version,
	}
}

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	PlayerID  string `json:"player_id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar,omitempty"`
	HighScore int64  `json:"high_score"`
	Level     int64  `json:"level"`
	Coins     int64  `json:"coins"`
}

// Leaderboard wraps the ranked rows
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardFromModel converts leaderboard rows
func LeaderboardFromModel(entries []model.LeaderboardEntry) Leaderboard {
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntry{
			Rank:      e.Rank,
			PlayerID:  string(e.PlayerID),
			Username:  e.Username,
			Avatar:    e.Avatar,
			HighScore: e.HighScore,
			Level:     e.Level,
			Coins:     e.Coins,
		}
	}
	return Leaderboard{Entries: out}
}

// Dashboard is the admin overview
type Dashboard struct {
	TotalPlayers  int   `json:"total_players"`
	OnlinePlayers int   `json:"online_players"`
	TotalGames    int   `json:"total_games"`
	MaxScore      int64 `json:"max_score"`
}

// DashboardFromModel converts model.Dashboard
func DashboardFromModel(d model.Dashboard) Dashboard {
	return Dashboard{
		TotalPlayers:  d.TotalPlayers,
		OnlinePlayers: d.OnlinePlayers,
		TotalGames:    d.TotalGames,
		MaxScore:      d.MaxScore,
	}
}

// PlayerList is the admin player listing
type PlayerList struct {
	Players []Profile `json:"players"`
}

// PlayerListFromModel converts admin profiles
func PlayerListFromModel(profiles []model.PlayerProfile) PlayerList {
	out := make([]Profile, len(profiles))
	for i := range profiles {
		out[i] = ProfileFromModel(&profiles[i])
	}
	return PlayerList{Players: out}
}

// StatsReset reports an admin stats reset
type StatsReset struct {
	PlayersReset int `json:"players_reset"`
}

// SessionsCleared reports an admin history purge
type SessionsCleared struct {
	SessionsRemoved int `json:"sessions_removed"`
}
