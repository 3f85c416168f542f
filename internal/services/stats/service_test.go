package stats_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/mcoot/rublocks/internal/dependencies/mocks"
	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/services/stats"
	statsmocks "github.com/mcoot/rublocks/internal/services/stats/mocks"
	"github.com/mcoot/rublocks/internal/storage"
	"github.com/mcoot/rublocks/internal/storage/memory"
	"github.com/mcoot/rublocks/internal/testutil"
)

// interleavingStorage runs a competing write just before the first
// interleave PutStats calls, forcing them to conflict
type interleavingStorage struct {
	storage.Storage
	interleave int
	compete    func(ctx context.Context, playerID model.PlayerID)
	puts       atomic.Int32
}

func (s *interleavingStorage) PutStats(ctx context.Context, playerID model.PlayerID, st model.PlayerStats, expectedVersion int64) (int64, error) {
	if int(s.puts.Add(1)) <= s.interleave {
		s.compete(ctx, playerID)
	}
	return s.Storage.PutStats(ctx, playerID, st, expectedVersion)
}

// conflictingStorage rejects every stats write
type conflictingStorage struct {
	storage.Storage
	puts atomic.Int32
}

func (s *conflictingStorage) PutStats(context.Context, model.PlayerID, model.PlayerStats, int64) (int64, error) {
	s.puts.Add(1)
	return 0, model.ErrConflict
}

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	notifier *statsmocks.MockNotifier
	storage  *memory.Storage
	clock    *mocks.MockClock
	ids      *mocks.MockIDGenerator
	service  *stats.Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.notifier = statsmocks.NewMockNotifier(s.ctrl)
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ids = mocks.NewMockIDGenerator()
	s.service = s.newService(s.storage, stats.DefaultConfig())
	s.ctx = context.Background()

	for _, id := range []model.PlayerID{"player-1", "player-new"} {
		s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: id, Username: string(id)}))
	}
}

func (s *ServiceSuite) newService(store storage.Storage, cfg stats.Config) *stats.Service {
	return stats.New(store, s.clock, s.ids, s.notifier, testutil.NopLogger(), cfg)
}

func (s *ServiceSuite) seed(playerID model.PlayerID, st model.PlayerStats) {
	_, err := s.storage.PutStats(s.ctx, playerID, st, 0)
	s.Require().NoError(err)
}

// RecordSession tests

func (s *ServiceSuite) TestRecordSessionAppliesDeltaAndNotifiesLevelUp() {
	s.seed("player-1", model.PlayerStats{GamesPlayed: 5, HighScore: 300, TotalPlayTime: 600, Coins: 20, Experience: 250, Level: 3})

	expected := model.PlayerStats{GamesPlayed: 6, HighScore: 300, TotalPlayTime: 720, Coins: 30, Experience: 310, Level: 4}
	s.notifier.EXPECT().NotifyLevelUp(gomock.Any(), stats.LevelUpEvent{
		PlayerID:      "player-1",
		PreviousLevel: 3,
		NewLevel:      4,
		Stats:         expected,
		OccurredAt:    s.clock.Now(),
	}).Times(1)

	outcome, err := s.service.RecordSession(s.ctx, "player-1", model.SessionDelta{
		Score: 280, GamesPlayed: 1, PlayTime: 120, CoinsEarned: 10, ExperienceEarned: 60,
	})
	s.Require().NoError(err)

	s.Equal(expected, outcome.Stats)
	s.True(outcome.LeveledUp)
	s.Equal(int64(2), outcome.Version)
	s.Equal(1, outcome.Attempts)

	stored, err := s.storage.GetStats(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(expected, stored.Stats)
}

func (s *ServiceSuite) TestRecordSessionWithoutLevelUpDoesNotNotify() {
	s.seed("player-1", model.PlayerStats{Experience: 10, Level: 1})

	outcome, err := s.service.RecordSession(s.ctx, "player-1", model.SessionDelta{Score: 5, GamesPlayed: 1, ExperienceEarned: 5})
	s.Require().NoError(err)
	s.False(outcome.LeveledUp)
}

func (s *ServiceSuite) TestRecordSessionFirstEverCreatesRecord() {
	outcome, err := s.service.RecordSession(s.ctx, "player-new", model.SessionDelta{Score: 90, GamesPlayed: 1, PlayTime: 45, CoinsEarned: 3, ExperienceEarned: 20})
	s.Require().NoError(err)

	s.Equal(int64(1), outcome.Version)
	s.Equal(model.PlayerStats{GamesPlayed: 1, HighScore: 90, TotalPlayTime: 45, Coins: 3, Experience: 20, Level: 1}, outcome.Stats)
	s.Equal(int64(1), outcome.PreviousLevel)
}

func (s *ServiceSuite) TestRecordSessionSavesHistory() {
	s.ids.Queue("session-abc")

	outcome, err := s.service.RecordSession(s.ctx, "player-1", model.SessionDelta{Score: 12, GamesPlayed: 1, PlayTime: 30})
	s.Require().NoError(err)
	s.Equal(model.GameSessionID("session-abc"), outcome.SessionID)

	count, err := s.storage.CountGameSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestRecordSessionRejectsNegativeDeltaBeforeWriting() {
	_, err := s.service.RecordSession(s.ctx, "player-1", model.SessionDelta{Score: 10, CoinsEarned: -1})
	s.ErrorIs(err, model.ErrInvalidDelta)

	_, err = s.storage.GetStats(s.ctx, "player-1")
	s.ErrorIs(err, model.ErrStatsNotFound)
	count, _ := s.storage.CountGameSessions(s.ctx)
	s.Equal(0, count)
}

func (s *ServiceSuite) TestRecordSessionPolicyRejectsImplausibleSession() {
	cfg := stats.DefaultConfig()
	cfg.Policy = stats.SessionPolicy{MaxPlayTime: 3600, MaxScore: 10_000}
	service := s.newService(s.storage, cfg)

	_, err := service.RecordSession(s.ctx, "player-1", model.SessionDelta{PlayTime: 3601})
	s.ErrorIs(err, model.ErrImplausibleSession)

	_, err = service.RecordSession(s.ctx, "player-1", model.SessionDelta{Score: 10_001})
	s.ErrorIs(err, model.ErrImplausibleSession)

	_, err = service.RecordSession(s.ctx, "player-1", model.SessionDelta{Score: 10_000, PlayTime: 3600})
	s.NoError(err)
}

func (s *ServiceSuite) TestRecordSessionForUnknownPlayerLeavesNoStats() {
	_, err := s.service.RecordSession(s.ctx, "ghost", model.SessionDelta{Score: 500, GamesPlayed: 1})
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.storage.GetStats(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrStatsNotFound)
	top, err := s.storage.TopByHighScore(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(top)
	count, _ := s.storage.CountGameSessions(s.ctx)
	s.Equal(0, count)
}

func (s *ServiceSuite) TestRecordSessionDroppedWhenPlayerDeletedMidway() {
	s.seed("player-1", model.PlayerStats{GamesPlayed: 3, HighScore: 80, Level: 1})

	// The player is deleted after our read but before our write
	store := &interleavingStorage{
		Storage:    s.storage,
		interleave: 1,
		compete: func(ctx context.Context, playerID model.PlayerID) {
			s.Require().NoError(s.storage.DeletePlayer(ctx, playerID))
			s.Require().NoError(s.storage.DeleteStats(ctx, playerID))
		},
	}
	service := s.newService(store, stats.DefaultConfig())

	_, err := service.RecordSession(s.ctx, "player-1", model.SessionDelta{Score: 999, GamesPlayed: 1, ExperienceEarned: 5})
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.storage.GetStats(s.ctx, "player-1")
	s.ErrorIs(err, model.ErrStatsNotFound)
	top, err := s.storage.TopByHighScore(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(top)
}

func (s *ServiceSuite) TestRecordSessionRetriesAfterConflict() {
	s.seed("player-1", model.PlayerStats{GamesPlayed: 1, HighScore: 50, Experience: 50, Level: 1})

	store := &interleavingStorage{
		Storage:    s.storage,
		interleave: 2,
		compete: func(ctx context.Context, playerID model.PlayerID) {
			current, err := s.storage.GetStats(ctx, playerID)
			s.Require().NoError(err)
			next, err := stats.Reconcile(&current.Stats, model.SessionDelta{Score: 70, GamesPlayed: 1, ExperienceEarned: 10})
			s.Require().NoError(err)
			_, err = s.storage.PutStats(ctx, playerID, next.Stats, current.Version)
			s.Require().NoError(err)
		},
	}
	service := s.newService(store, stats.DefaultConfig())

	outcome, err := service.RecordSession(s.ctx, "player-1", model.SessionDelta{Score: 40, GamesPlayed: 1, ExperienceEarned: 5})
	s.Require().NoError(err)
	s.Equal(3, outcome.Attempts)

	// Both competing writes and our own are reflected exactly once
	s.Equal(int64(4), outcome.Stats.GamesPlayed)
	s.Equal(int64(75), outcome.Stats.Experience)
	s.Equal(int64(70), outcome.Stats.HighScore)
	s.Equal(int64(4), outcome.Version)
}

func (s *ServiceSuite) TestRecordSessionRetriesExhaustedReturnsConflict() {
	s.seed("player-1", model.PlayerStats{GamesPlayed: 1, Level: 1})

	store := &conflictingStorage{Storage: s.storage}
	cfg := stats.DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Microsecond
	service := s.newService(store, cfg)

	_, err := service.RecordSession(s.ctx, "player-1", model.SessionDelta{GamesPlayed: 1, ExperienceEarned: 500})
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(int32(3), store.puts.Load())

	stored, err := s.storage.GetStats(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(int64(1), stored.Stats.GamesPlayed)

	count, _ := s.storage.CountGameSessions(s.ctx)
	s.Equal(0, count)
}

func (s *ServiceSuite) TestRecordSessionStopsRetryingWhenContextCancelled() {
	store := &conflictingStorage{Storage: s.storage}
	cfg := stats.DefaultConfig()
	cfg.RetryBackoff = time.Hour
	service := s.newService(store, cfg)

	ctx, cancel := context.WithCancel(s.ctx)
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := service.RecordSession(ctx, "player-1", model.SessionDelta{GamesPlayed: 1})
	s.ErrorIs(err, context.Canceled)
	s.Equal(int32(1), store.puts.Load())
}

func (s *ServiceSuite) TestConcurrentSessionsAreNeverLost() {
	cfg := stats.DefaultConfig()
	cfg.MaxRetries = 1000
	cfg.RetryBackoff = time.Microsecond
	service := stats.New(s.storage, s.clock, s.ids, stats.NewLogNotifier(testutil.NopLogger()), testutil.NopLogger(), cfg)

	const sessions = 25
	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.RecordSession(s.ctx, "player-1", model.SessionDelta{
				Score:            int64(i * 10),
				GamesPlayed:      1,
				PlayTime:         60,
				CoinsEarned:      2,
				ExperienceEarned: 20,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}

	stored, err := s.storage.GetStats(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerStats{
		GamesPlayed:   sessions,
		HighScore:     (sessions - 1) * 10,
		TotalPlayTime: sessions * 60,
		Coins:         sessions * 2,
		Experience:    sessions * 20,
		Level:         sessions*20/100 + 1,
	}, stored.Stats)
	s.Equal(int64(sessions), stored.Version)
}

// GetStats tests

func (s *ServiceSuite) TestGetStatsReturnsBaselineWhenAbsent() {
	got, err := s.service.GetStats(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Equal(model.NewPlayerStats(), got)
}

func (s *ServiceSuite) TestProfileCombinesPlayerAndStats() {
	s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: "player-1", Username: "alice"}))
	s.seed("player-1", model.PlayerStats{HighScore: 10, Level: 1})

	profile, err := s.service.Profile(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("alice", profile.Player.Username)
	s.Equal(int64(10), profile.Stats.HighScore)

	_, err = s.service.Profile(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Leaderboard tests

func (s *ServiceSuite) TestLeaderboardRanksAndDecorates() {
	s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: "p-1", Username: "alice", Avatar: "cat"}))
	s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: "p-2", Username: "bob"}))
	s.seed("p-1", model.PlayerStats{HighScore: 100, Level: 2, Coins: 7})
	s.seed("p-2", model.PlayerStats{HighScore: 250, Level: 1})
	s.seed("p-orphan", model.PlayerStats{HighScore: 5, Level: 1})

	entries, err := s.service.Leaderboard(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)

	s.Equal(1, entries[0].Rank)
	s.Equal("bob", entries[0].Username)
	s.Equal(int64(250), entries[0].HighScore)

	s.Equal(2, entries[1].Rank)
	s.Equal("alice", entries[1].Username)
	s.Equal("cat", entries[1].Avatar)
	s.Equal(int64(7), entries[1].Coins)

	s.Equal("p-orphan", entries[2].Username)
}

func (s *ServiceSuite) TestLeaderboardLimits() {
	for i := range 120 {
		s.seed(model.PlayerID(fmt.Sprintf("p-%03d", i)), model.PlayerStats{HighScore: int64(i), Level: 1})
	}

	entries, err := s.service.Leaderboard(s.ctx, -1)
	s.Require().NoError(err)
	s.Len(entries, 10)

	entries, err = s.service.Leaderboard(s.ctx, 3)
	s.Require().NoError(err)
	s.Len(entries, 3)
	s.Equal(int64(119), entries[0].HighScore)

	entries, err = s.service.Leaderboard(s.ctx, 500)
	s.Require().NoError(err)
	s.Len(entries, 100)
}
