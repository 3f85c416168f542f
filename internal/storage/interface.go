package storage

import (
	"context"

	"github.com/mcoot/rublocks/internal/model"
)

// StatsEntry is a stats record keyed by its owner, as returned by ranking queries
type StatsEntry struct {
	PlayerID model.PlayerID
	Stats    model.PlayerStats
}

// Storage defines the interface for data persistence
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error
	ListPlayers(ctx context.Context) ([]*model.Player, error)

	// Registered player operations.
	// SaveRegisteredPlayer claims the username and email atomically and
	// fails with model.ErrUsernameTaken or model.ErrEmailTaken when another
	// player already holds either of them.
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByEmail(ctx context.Context, email string) (*model.RegisteredPlayer, error)
	DeleteRegisteredPlayer(ctx context.Context, playerID model.PlayerID) error

	// Stats operations.
	// PutStats is a conditional write: it succeeds only when the stored
	// version equals expectedVersion (0 meaning no record yet) and returns
	// the new version. A mismatch yields model.ErrConflict.
	GetStats(ctx context.Context, playerID model.PlayerID) (*model.VersionedStats, error)
	PutStats(ctx context.Context, playerID model.PlayerID, stats model.PlayerStats, expectedVersion int64) (int64, error)
	DeleteStats(ctx context.Context, playerID model.PlayerID) error

	// TopByHighScore returns up to limit records ordered by high score
	// descending, then level descending, then player ID ascending.
	TopByHighScore(ctx context.Context, limit int) ([]StatsEntry, error)

	// Game session history
	SaveGameSession(ctx context.Context, session *model.GameSession) error
	CountGameSessions(ctx context.Context) (int, error)
	// ClearGameSessions deletes all session history and returns how many were removed
	ClearGameSessions(ctx context.Context) (int, error)
}
