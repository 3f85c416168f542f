package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrUsernameTaken  = errors.New("username taken by another player")
	ErrEmailTaken     = errors.New("email taken by another player")

	// Stats errors
	ErrStatsNotFound = errors.New("stats not found")
	ErrInvalidDelta  = errors.New("invalid session delta")
	ErrConflict      = errors.New("concurrent stats update conflict")

	// Session source errors
	ErrImplausibleSession = errors.New("session outside plausible bounds")
)
