// Package storagetest holds the behavioural contract every storage backend
// must satisfy. Backend packages run it against their own implementation.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/storage"
)

// Suite exercises a storage.Storage through its public contract
type Suite struct {
	suite.Suite

	// NewStorage builds a fresh, empty backend for each test
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStorage, "NewStorage must be set")
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
}

// Player tests

func (s *Suite) TestSaveAndGetPlayer() {
	player := &model.Player{
		ID:        "player-1",
		Username:  "alice",
		Email:     "alice@example.com",
		Avatar:    "cat",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, player))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(player.ID, retrieved.ID)
	s.Equal(player.Username, retrieved.Username)
	s.Equal(player.Email, retrieved.Email)
	s.Equal(player.Avatar, retrieved.Avatar)
	s.True(player.CreatedAt.Equal(retrieved.CreatedAt))
}

func (s *Suite) TestSavePlayerOverwrites() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: "player-1", Username: "alice"}))
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: "player-1", Username: "alice", IsOnline: true}))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.True(retrieved.IsOnline)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestDeletePlayer() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: "player-1", Username: "alice"}))

	s.Require().NoError(s.Storage.DeletePlayer(s.Ctx, "player-1"))

	_, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestListPlayers() {
	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Empty(players)

	for _, id := range []model.PlayerID{"p-b", "p-a", "p-c"} {
		s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &model.Player{ID: id, Username: string(id)}))
	}

	players, err = s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 3)
	s.Equal(model.PlayerID("p-a"), players[0].ID)
	s.Equal(model.PlayerID("p-b"), players[1].ID)
	s.Equal(model.PlayerID("p-c"), players[2].ID)
}

// Registered player tests

func (s *Suite) saveRegistered(id model.PlayerID, username, email string) {
	s.Require().NoError(s.Storage.SaveRegisteredPlayer(s.Ctx, &model.RegisteredPlayer{
		PlayerID:     id,
		Username:     username,
		Email:        email,
		PasswordHash: "hash-" + username,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}))
}

func (s *Suite) TestSaveAndGetRegisteredPlayer() {
	s.saveRegistered("player-1", "alice", "alice@example.com")

	retrieved, err := s.Storage.GetRegisteredPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("alice", retrieved.Username)
	s.Equal("alice@example.com", retrieved.Email)
	s.Equal("hash-alice", retrieved.PasswordHash)
}

func (s *Suite) TestGetRegisteredPlayerByUsername() {
	s.saveRegistered("player-1", "alice", "alice@example.com")

	retrieved, err := s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.PlayerID)

	_, err = s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestGetRegisteredPlayerByEmail() {
	s.saveRegistered("player-1", "alice", "alice@example.com")

	retrieved, err := s.Storage.GetRegisteredPlayerByEmail(s.Ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.PlayerID)

	_, err = s.Storage.GetRegisteredPlayerByEmail(s.Ctx, "bob@example.com")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestGetRegisteredPlayerNotFound() {
	_, err := s.Storage.GetRegisteredPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestDeleteRegisteredPlayerClearsIndexes() {
	s.saveRegistered("player-1", "alice", "alice@example.com")

	s.Require().NoError(s.Storage.DeleteRegisteredPlayer(s.Ctx, "player-1"))

	_, err := s.Storage.GetRegisteredPlayer(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	_, err = s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	_, err = s.Storage.GetRegisteredPlayerByEmail(s.Ctx, "alice@example.com")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	// Deleting again is a no-op
	s.NoError(s.Storage.DeleteRegisteredPlayer(s.Ctx, "player-1"))
}

func (s *Suite) TestSaveRegisteredPlayerRejectsTakenUsername() {
	s.saveRegistered("player-1", "alice", "alice@example.com")

	err := s.Storage.SaveRegisteredPlayer(s.Ctx, &model.RegisteredPlayer{
		PlayerID: "player-2", Username: "alice", Email: "other@example.com", PasswordHash: "x",
	})
	s.ErrorIs(err, model.ErrUsernameTaken)

	owner, err := s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), owner.PlayerID)
	_, err = s.Storage.GetRegisteredPlayer(s.Ctx, "player-2")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestSaveRegisteredPlayerRejectsTakenEmail() {
	s.saveRegistered("player-1", "alice", "alice@example.com")

	err := s.Storage.SaveRegisteredPlayer(s.Ctx, &model.RegisteredPlayer{
		PlayerID: "player-2", Username: "bob", Email: "alice@example.com", PasswordHash: "x",
	})
	s.ErrorIs(err, model.ErrEmailTaken)

	owner, err := s.Storage.GetRegisteredPlayerByEmail(s.Ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), owner.PlayerID)
	_, err = s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestSaveRegisteredPlayerUpdatesOwnRecord() {
	s.saveRegistered("player-1", "alice", "alice@example.com")
	s.saveRegistered("player-1", "alicia", "alice@example.com")

	_, err := s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	renamed, err := s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "alicia")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), renamed.PlayerID)

	// The released name can be claimed by someone else
	s.saveRegistered("player-2", "alice", "bob@example.com")
}

func (s *Suite) TestConcurrentRegistrationsClaimUsernameOnce() {
	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		taken     int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Storage.SaveRegisteredPlayer(s.Ctx, &model.RegisteredPlayer{
				PlayerID:     model.PlayerID(fmt.Sprintf("player-%d", i)),
				Username:     "alice",
				Email:        fmt.Sprintf("alice%d@example.com", i),
				PasswordHash: "x",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, model.ErrUsernameTaken):
				taken++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(writers-1, taken)
}

// Stats tests

func (s *Suite) TestGetStatsNotFound() {
	_, err := s.Storage.GetStats(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrStatsNotFound)
}

func (s *Suite) TestPutStatsCreatesAtVersionOne() {
	stats := model.PlayerStats{GamesPlayed: 1, HighScore: 40, TotalPlayTime: 60, Coins: 2, Experience: 30, Level: 1}

	version, err := s.Storage.PutStats(s.Ctx, "player-1", stats, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), version)

	got, err := s.Storage.GetStats(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(stats, got.Stats)
	s.Equal(int64(1), got.Version)
}

func (s *Suite) TestPutStatsAdvancesVersion() {
	_, err := s.Storage.PutStats(s.Ctx, "player-1", model.NewPlayerStats(), 0)
	s.Require().NoError(err)

	updated := model.PlayerStats{GamesPlayed: 1, HighScore: 10, Level: 1}
	version, err := s.Storage.PutStats(s.Ctx, "player-1", updated, 1)
	s.Require().NoError(err)
	s.Equal(int64(2), version)

	got, err := s.Storage.GetStats(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(updated, got.Stats)
	s.Equal(int64(2), got.Version)
}

func (s *Suite) TestPutStatsStaleVersionConflicts() {
	_, err := s.Storage.PutStats(s.Ctx, "player-1", model.NewPlayerStats(), 0)
	s.Require().NoError(err)
	_, err = s.Storage.PutStats(s.Ctx, "player-1", model.PlayerStats{GamesPlayed: 1, Level: 1}, 1)
	s.Require().NoError(err)

	_, err = s.Storage.PutStats(s.Ctx, "player-1", model.PlayerStats{GamesPlayed: 99, Level: 1}, 1)
	s.ErrorIs(err, model.ErrConflict)

	got, err := s.Storage.GetStats(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Stats.GamesPlayed, "rejected write must not be applied")
	s.Equal(int64(2), got.Version)
}

func (s *Suite) TestPutStatsCreateWhenExistingConflicts() {
	_, err := s.Storage.PutStats(s.Ctx, "player-1", model.NewPlayerStats(), 0)
	s.Require().NoError(err)

	_, err = s.Storage.PutStats(s.Ctx, "player-1", model.NewPlayerStats(), 0)
	s.ErrorIs(err, model.ErrConflict)
}

func (s *Suite) TestPutStatsUpdateWhenMissingConflicts() {
	_, err := s.Storage.PutStats(s.Ctx, "player-1", model.NewPlayerStats(), 3)
	s.ErrorIs(err, model.ErrConflict)

	_, err = s.Storage.GetStats(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrStatsNotFound)
}

func (s *Suite) TestConcurrentPutStatsOnlyOneWins() {
	_, err := s.Storage.PutStats(s.Ctx, "player-1", model.NewPlayerStats(), 0)
	s.Require().NoError(err)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Storage.PutStats(s.Ctx, "player-1", model.PlayerStats{GamesPlayed: int64(i + 1), Level: 1}, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, model.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(writers-1, conflicts)

	got, err := s.Storage.GetStats(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)
}

func (s *Suite) TestDeleteStats() {
	_, err := s.Storage.PutStats(s.Ctx, "player-1", model.NewPlayerStats(), 0)
	s.Require().NoError(err)

	s.Require().NoError(s.Storage.DeleteStats(s.Ctx, "player-1"))

	_, err = s.Storage.GetStats(s.Ctx, "player-1")
	s.ErrorIs(err, model.ErrStatsNotFound)

	entries, err := s.Storage.TopByHighScore(s.Ctx, 10)
	s.Require().NoError(err)
	s.Empty(entries)
}

// Ranking tests

func (s *Suite) putHighScore(id model.PlayerID, highScore, level int64) {
	current, err := s.Storage.GetStats(s.Ctx, id)
	var version int64
	if err == nil {
		version = current.Version
	}
	_, err = s.Storage.PutStats(s.Ctx, id, model.PlayerStats{HighScore: highScore, Level: level, Experience: (level - 1) * 100}, version)
	s.Require().NoError(err)
}

func (s *Suite) TestTopByHighScoreOrdering() {
	s.putHighScore("p-low", 10, 1)
	s.putHighScore("p-high", 500, 2)
	s.putHighScore("p-tie-b", 300, 3)
	s.putHighScore("p-tie-a", 300, 3)
	s.putHighScore("p-tie-level", 300, 5)

	entries, err := s.Storage.TopByHighScore(s.Ctx, 10)
	s.Require().NoError(err)

	ids := make([]model.PlayerID, len(entries))
	for i, e := range entries {
		ids[i] = e.PlayerID
	}
	s.Equal([]model.PlayerID{"p-high", "p-tie-level", "p-tie-a", "p-tie-b", "p-low"}, ids)
	s.Equal(int64(500), entries[0].Stats.HighScore)
}

func (s *Suite) TestTopByHighScoreLimit() {
	for i := range 5 {
		s.putHighScore(model.PlayerID(fmt.Sprintf("p-%d", i)), int64(i*100), 1)
	}

	entries, err := s.Storage.TopByHighScore(s.Ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(model.PlayerID("p-4"), entries[0].PlayerID)
	s.Equal(model.PlayerID("p-3"), entries[1].PlayerID)
}

func (s *Suite) TestTopByHighScoreLimitKeepsTieOrder() {
	s.putHighScore("p-c", 100, 1)
	s.putHighScore("p-b", 100, 1)
	s.putHighScore("p-a", 100, 1)

	entries, err := s.Storage.TopByHighScore(s.Ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(model.PlayerID("p-a"), entries[0].PlayerID)
	s.Equal(model.PlayerID("p-b"), entries[1].PlayerID)
}

func (s *Suite) TestTopByHighScoreReflectsUpdates() {
	s.putHighScore("p-1", 100, 1)
	s.putHighScore("p-2", 200, 1)
	s.putHighScore("p-1", 300, 1)

	entries, err := s.Storage.TopByHighScore(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(model.PlayerID("p-1"), entries[0].PlayerID)
}

// Game session tests

func (s *Suite) TestSaveAndCountGameSessions() {
	count, err := s.Storage.CountGameSessions(s.Ctx)
	s.Require().NoError(err)
	s.Equal(0, count)

	for i := range 3 {
		s.Require().NoError(s.Storage.SaveGameSession(s.Ctx, &model.GameSession{
			ID:        model.GameSessionID(fmt.Sprintf("session-%d", i)),
			PlayerID:  "player-1",
			Score:     int64(i * 10),
			Duration:  60,
			Level:     1,
			CreatedAt: time.Now().UTC(),
		}))
	}

	count, err = s.Storage.CountGameSessions(s.Ctx)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *Suite) TestClearGameSessions() {
	removed, err := s.Storage.ClearGameSessions(s.Ctx)
	s.Require().NoError(err)
	s.Equal(0, removed)

	for i := range 4 {
		s.Require().NoError(s.Storage.SaveGameSession(s.Ctx, &model.GameSession{
			ID:        model.GameSessionID(fmt.Sprintf("session-%d", i)),
			PlayerID:  "player-1",
			Score:     10,
			Duration:  30,
			Level:     1,
			CreatedAt: time.Now().UTC(),
		}))
	}

	removed, err = s.Storage.ClearGameSessions(s.Ctx)
	s.Require().NoError(err)
	s.Equal(4, removed)

	count, err := s.Storage.CountGameSessions(s.Ctx)
	s.Require().NoError(err)
	s.Equal(0, count)
}
