package model

import "time"

// GameSessionID identifies a recorded play session
type GameSessionID string

// GameSession is the historical record of one finished play session
type GameSession struct {
	ID        GameSessionID
	PlayerID  PlayerID
	Score     int64
	Duration  int64 // seconds
	Level     int64 // level after the session was applied
	CreatedAt time.Time
}
