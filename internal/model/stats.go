package model

// PlayerStats is the persisted per-player statistics record.
// Every field except Level is an accumulator that never decreases;
// Level is always derived from Experience.
type PlayerStats struct {
	GamesPlayed   int64
	HighScore     int64
	TotalPlayTime int64 // seconds
	Coins         int64
	Experience    int64
	Level         int64
}

// NewPlayerStats returns the baseline for a player with no sessions
func NewPlayerStats() PlayerStats {
	return PlayerStats{Level: 1}
}

// SessionDelta is reported once per finished play session
type SessionDelta struct {
	Score            int64
	GamesPlayed      int64
	PlayTime         int64 // seconds
	CoinsEarned      int64
	ExperienceEarned int64
}

// IsZero reports whether the delta carries no contribution
func (d SessionDelta) IsZero() bool {
	return d == SessionDelta{}
}

// VersionedStats is PlayerStats as held by a store, tagged with the
// optimistic-concurrency version of the record. Version 0 means absent.
type VersionedStats struct {
	Stats   PlayerStats
	Version int64
}
