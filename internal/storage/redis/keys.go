package redis

import (
	"fmt"

	"github.com/mcoot/rublocks/internal/model"
)

// Key prefix for all rublocks data
const keyPrefix = "rublocks"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// playersIndexKey returns the Redis key for the SET of all player IDs
func playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// emailIndexKey returns the Redis key for the email -> player_id index
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}

// statsKey returns the Redis key for a player's versioned stats
func statsKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:stats:%s", keyPrefix, playerID)
}

// leaderboardKey returns the Redis key for the ZSET of high scores
func leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", keyPrefix)
}

// gameSessionKey returns the Redis key for a GameSession
func gameSessionKey(id model.GameSessionID) string {
	return fmt.Sprintf("%s:game_session:%s", keyPrefix, id)
}

// gameSessionsIndexKey returns the Redis key for the SET of recorded session IDs
func gameSessionsIndexKey() string {
	return fmt.Sprintf("%s:idx:game_sessions", keyPrefix)
}
