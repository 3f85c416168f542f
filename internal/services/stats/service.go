package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/rublocks/internal/dependencies/clock"
	"github.com/mcoot/rublocks/internal/dependencies/idgen"
	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/storage"
)

// SessionPolicy bounds what a single reported session may claim.
// A zero bound means unlimited.
type SessionPolicy struct {
	MaxPlayTime int64 // seconds
	MaxScore    int64
}

// Check rejects deltas outside the configured bounds
func (p SessionPolicy) Check(delta model.SessionDelta) error {
	if p.MaxPlayTime > 0 && delta.PlayTime > p.MaxPlayTime {
		return fmt.Errorf("%w: play time %d exceeds %d", model.ErrImplausibleSession, delta.PlayTime, p.MaxPlayTime)
	}
	if p.MaxScore > 0 && delta.Score > p.MaxScore {
		return fmt.Errorf("%w: score %d exceeds %d", model.ErrImplausibleSession, delta.Score, p.MaxScore)
	}
	return nil
}

// Config holds configuration for the stats service
type Config struct {
	// MaxRetries is how many times a conflicting write is retried
	MaxRetries   int
	RetryBackoff time.Duration

	DefaultLeaderboardLimit int
	MaxLeaderboardLimit     int

	Policy SessionPolicy
}

// DefaultConfig returns default stats configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:              5,
		RetryBackoff:            5 * time.Millisecond,
		DefaultLeaderboardLimit: 10,
		MaxLeaderboardLimit:     100,
	}
}

// Outcome is the result of recording a session
type Outcome struct {
	Result
	Version   int64
	SessionID model.GameSessionID
	Attempts  int
}

// Service applies finished sessions to stored player stats
type Service struct {
	storage  storage.Storage
	clock    clock.Clock
	ids      idgen.Generator
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
}

// New creates a new stats Service
func New(storage storage.Storage, clock clock.Clock, ids idgen.Generator, notifier Notifier, logger *slog.Logger, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.DefaultLeaderboardLimit <= 0 {
		cfg.DefaultLeaderboardLimit = defaults.DefaultLeaderboardLimit
	}
	if cfg.MaxLeaderboardLimit <= 0 {
		cfg.MaxLeaderboardLimit = defaults.MaxLeaderboardLimit
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Service{
		storage:  storage,
		clock:    clock,
		ids:      ids,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// RecordSession applies delta to the player's stats with a
// read-reconcile-conditional-write loop. A concurrent writer causes a
// retry against fresh state; once retries run out model.ErrConflict is
// returned and nothing has been applied. Unknown players get
// model.ErrPlayerNotFound.
func (s *Service) RecordSession(ctx context.Context, playerID model.PlayerID, delta model.SessionDelta) (*Outcome, error) {
	if err := Validate(delta); err != nil {
		return nil, err
	}
	if err := s.cfg.Policy.Check(delta); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		result, version, err := s.tryApply(ctx, playerID, delta)
		if err == nil {
			if err := s.ensurePlayer(ctx, playerID); err != nil {
				return nil, err
			}
			outcome := &Outcome{Result: result, Version: version, Attempts: attempt}
			outcome.SessionID = s.recordHistory(ctx, playerID, delta, result)
			s.logger.Debug("session recorded",
				slog.String("player_id", string(playerID)),
				slog.Int64("version", version),
				slog.Int("attempts", attempt),
			)
			if result.LeveledUp {
				s.notifier.NotifyLevelUp(ctx, LevelUpEvent{
					PlayerID:      playerID,
					PreviousLevel: result.PreviousLevel,
					NewLevel:      result.Stats.Level,
					Stats:         result.Stats,
					OccurredAt:    s.clock.Now(),
				})
			}
			return outcome, nil
		}

		if !errors.Is(err, model.ErrConflict) {
			return nil, err
		}
		if attempt > s.cfg.MaxRetries {
			s.logger.Warn("stats update retries exhausted",
				slog.String("player_id", string(playerID)),
				slog.Int("attempts", attempt),
			)
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
}

// tryApply performs one read-reconcile-write cycle
func (s *Service) tryApply(ctx context.Context, playerID model.PlayerID, delta model.SessionDelta) (Result, int64, error) {
	var (
		current         *model.PlayerStats
		expectedVersion int64
	)
	stored, err := s.storage.GetStats(ctx, playerID)
	switch {
	case err == nil:
		current = &stored.Stats
		expectedVersion = stored.Version
	case errors.Is(err, model.ErrStatsNotFound):
	default:
		return Result{}, 0, fmt.Errorf("read stats: %w", err)
	}

	result, err := Reconcile(current, delta)
	if err != nil {
		return Result{}, 0, err
	}

	version, err := s.storage.PutStats(ctx, playerID, result.Stats, expectedVersion)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			return Result{}, 0, err
		}
		return Result{}, 0, fmt.Errorf("write stats: %w", err)
	}
	return result, version, nil
}

// ensurePlayer runs after a committed stats write. If the player was
// deleted meanwhile the write is removed again, since the delete may have
// cleared stats before it landed.
func (s *Service) ensurePlayer(ctx context.Context, playerID model.PlayerID) error {
	_, err := s.storage.GetPlayer(ctx, playerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		s.logger.Warn("could not confirm player after stats write",
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := s.storage.DeleteStats(context.WithoutCancel(ctx), playerID); err != nil {
		s.logger.Error("failed to drop stats of deleted player",
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
	}
	return model.ErrPlayerNotFound
}

// recordHistory stores the session record. The stats write has already
// committed, so a failure here is logged rather than returned.
func (s *Service) recordHistory(ctx context.Context, playerID model.PlayerID, delta model.SessionDelta, result Result) model.GameSessionID {
	session := &model.GameSession{
		ID:        model.GameSessionID(s.ids.NewID()),
		PlayerID:  playerID,
		Score:     delta.Score,
		Duration:  delta.PlayTime,
		Level:     result.Stats.Level,
		CreatedAt: s.clock.Now(),
	}
	if err := s.storage.SaveGameSession(ctx, session); err != nil {
		s.logger.Error("failed to save game session",
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return session.ID
}

// GetStats returns the player's stats, or the baseline when none exist
func (s *Service) GetStats(ctx context.Context, playerID model.PlayerID) (model.PlayerStats, error) {
	stored, err := s.storage.GetStats(ctx, playerID)
	if errors.Is(err, model.ErrStatsNotFound) {
		return model.NewPlayerStats(), nil
	}
	if err != nil {
		return model.PlayerStats{}, err
	}
	return stored.Stats, nil
}

// Profile returns a player's public details together with their stats
func (s *Service) Profile(ctx context.Context, playerID model.PlayerID) (*model.PlayerProfile, error) {
	player, err := s.storage.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	stats, err := s.GetStats(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &model.PlayerProfile{Player: *player, Stats: stats}, nil
}

// Leaderboard returns the top players by high score. A non-positive
// limit selects the default; limits above the maximum are capped.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLeaderboardLimit
	}
	limit = min(limit, s.cfg.MaxLeaderboardLimit)

	top, err := s.storage.TopByHighScore(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(top))
	for i, e := range top {
		entry := model.LeaderboardEntry{
			Rank:      i + 1,
			PlayerID:  e.PlayerID,
			Username:  string(e.PlayerID),
			HighScore: e.Stats.HighScore,
			Level:     e.Stats.Level,
			Coins:     e.Stats.Coins,
		}
		player, err := s.storage.GetPlayer(ctx, e.PlayerID)
		switch {
		case err == nil:
			entry.Username = player.Username
			entry.Avatar = player.Avatar
		case !errors.Is(err, model.ErrPlayerNotFound):
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
