package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/storage"
)

// SessionRevoker drops every login session of a player
type SessionRevoker interface {
	InvalidatePlayerSessions(playerID model.PlayerID)
}

// Service provides the operator view over all players
type Service struct {
	storage storage.Storage
	revoker SessionRevoker
	logger  *slog.Logger
}

// New creates a new admin Service. revoker may be nil.
func New(storage storage.Storage, revoker SessionRevoker, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		revoker: revoker,
		logger:  logger,
	}
}

// Dashboard aggregates player, presence, session and score figures
func (s *Service) Dashboard(ctx context.Context) (model.Dashboard, error) {
	players, err := s.storage.ListPlayers(ctx)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("list players: %w", err)
	}

	var d model.Dashboard
	d.TotalPlayers = len(players)
	for _, p := range players {
		if p.IsOnline {
			d.OnlinePlayers++
		}
	}

	if d.TotalGames, err = s.storage.CountGameSessions(ctx); err != nil {
		return model.Dashboard{}, fmt.Errorf("count game sessions: %w", err)
	}

	top, err := s.storage.TopByHighScore(ctx, 1)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("top score: %w", err)
	}
	if len(top) > 0 {
		d.MaxScore = top[0].Stats.HighScore
	}
	return d, nil
}

// ListPlayers returns every player with their stats, sorted by username.
// A non-empty query keeps players whose username or email contains it,
// ignoring case.
func (s *Service) ListPlayers(ctx context.Context, query string) ([]model.PlayerProfile, error) {
	players, err := s.storage.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	profiles := make([]model.PlayerProfile, 0, len(players))
	for _, p := range players {
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Username), needle) &&
			!strings.Contains(strings.ToLower(p.Email), needle) {
			continue
		}

		stats := model.NewPlayerStats()
		stored, err := s.storage.GetStats(ctx, p.ID)
		switch {
		case err == nil:
			stats = stored.Stats
		case !errors.Is(err, model.ErrStatsNotFound):
			return nil, fmt.Errorf("get stats for %s: %w", p.ID, err)
		}
		profiles = append(profiles, model.PlayerProfile{Player: *p, Stats: stats})
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Player.Username < profiles[j].Player.Username
	})
	return profiles, nil
}

// DeletePlayer removes a player's sessions, profile, credentials and stats.
// Stats go last: a session recorded concurrently finds the player gone and
// drops its own write.
func (s *Service) DeletePlayer(ctx context.Context, playerID model.PlayerID) error {
	if _, err := s.storage.GetPlayer(ctx, playerID); err != nil {
		return err
	}

	if s.revoker != nil {
		s.revoker.InvalidatePlayerSessions(playerID)
	}
	if err := s.storage.DeletePlayer(ctx, playerID); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	if err := s.storage.DeleteRegisteredPlayer(ctx, playerID); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	if err := s.storage.DeleteStats(ctx, playerID); err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}

	s.logger.Info("player deleted", slog.String("player_id", string(playerID)))
	return nil
}

// maxResetAttempts bounds retries of a single player's reset
const maxResetAttempts = 10

// ResetAllStats puts every player back to baseline stats and returns how
// many were reset. Each reset is a version-checked write, so a session
// recorded at the same time either lands before the reset or is retried
// on top of it.
func (s *Service) ResetAllStats(ctx context.Context) (int, error) {
	players, err := s.storage.ListPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list players: %w", err)
	}

	reset := 0
	for _, p := range players {
		if err := s.resetStats(ctx, p.ID); err != nil {
			return reset, fmt.Errorf("reset stats for %s: %w", p.ID, err)
		}
		reset++
	}

	s.logger.Warn("all player stats reset", slog.Int("players", reset))
	return reset, nil
}

func (s *Service) resetStats(ctx context.Context, playerID model.PlayerID) error {
	for range maxResetAttempts {
		var version int64
		stored, err := s.storage.GetStats(ctx, playerID)
		switch {
		case err == nil:
			version = stored.Version
		case !errors.Is(err, model.ErrStatsNotFound):
			return err
		}

		_, err = s.storage.PutStats(ctx, playerID, model.NewPlayerStats(), version)
		if !errors.Is(err, model.ErrConflict) {
			return err
		}
	}
	return model.ErrConflict
}

// ClearGameSessions deletes the recorded session history
func (s *Service) ClearGameSessions(ctx context.Context) (int, error) {
	removed, err := s.storage.ClearGameSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear game sessions: %w", err)
	}
	s.logger.Warn("game session history cleared", slog.Int("removed", removed))
	return removed, nil
}
