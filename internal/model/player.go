package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player is the public profile of an account
type Player struct {
	ID        PlayerID
	Username  string
	Email     string
	Avatar    string
	IsAdmin   bool
	IsOnline  bool
	CreatedAt time.Time
	LastLogin time.Time
}

// RegisteredPlayer holds authentication data for a player
// Stored separately for security (password never in memory with session)
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	Email        string // lowercased
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlayerProfile pairs a player with their persisted statistics
type PlayerProfile struct {
	Player Player
	Stats  PlayerStats
}
