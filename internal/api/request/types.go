package request

import "github.com/mcoot/rublocks/internal/model"

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for logging in.
// Username may also hold the account's email address.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SubmitSessionRequest is the request body for reporting a finished session
type SubmitSessionRequest struct {
	Score int64 `json:"score"`
	// GamesPlayed defaults to 1 when omitted
	GamesPlayed      *int64 `json:"games_played,omitempty"`
	PlayTime         int64  `json:"play_time"`
	CoinsEarned      int64  `json:"coins_earned"`
	ExperienceEarned int64  `json:"experience_earned"`
}

// Delta converts the request to a SessionDelta
func (r SubmitSessionRequest) Delta() model.SessionDelta {
	games := int64(1)
	if r.GamesPlayed != nil {
		games = *r.GamesPlayed
	}
	return model.SessionDelta{
		Score:            r.Score,
		GamesPlayed:      games,
		PlayTime:         r.PlayTime,
		CoinsEarned:      r.CoinsEarned,
		ExperienceEarned: r.ExperienceEarned,
	}
}
