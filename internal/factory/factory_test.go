package factory

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/services/auth"
	"github.com/mcoot/rublocks/internal/storage/memory"
	"github.com/mcoot/rublocks/internal/storage/sqlite"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp(Config{
		AuthConfig: auth.Config{SessionDuration: time.Hour, AdminUsernames: []string{"ops"}},
	})
	s.ctx = context.Background()
}

func (s *IntegrationSuite) register(id, username string) *auth.Session {
	s.app.MockIDs.Queue(id)
	session, err := s.app.AuthService.Register(s.ctx, username, username+"@example.com", "secret123")
	s.Require().NoError(err)
	return session
}

// Test: registration, sessions, leaderboard and admin view share one store
func (s *IntegrationSuite) TestCompletePlayerFlow() {
	alice := s.register("alice-id", "alice")
	bob := s.register("bob-id", "bob")

	// Step 1: both start at the baseline
	stats, err := s.app.StatsService.GetStats(s.ctx, alice.PlayerID)
	s.Require().NoError(err)
	s.Equal(model.NewPlayerStats(), stats)

	// Step 2: alice plays two sessions and levels up
	_, err = s.app.StatsService.RecordSession(s.ctx, alice.PlayerID, model.SessionDelta{
		Score: 120, GamesPlayed: 1, PlayTime: 60, CoinsEarned: 5, ExperienceEarned: 80,
	})
	s.Require().NoError(err)
	outcome, err := s.app.StatsService.RecordSession(s.ctx, alice.PlayerID, model.SessionDelta{
		Score: 90, GamesPlayed: 1, PlayTime: 45, CoinsEarned: 3, ExperienceEarned: 40,
	})
	s.Require().NoError(err)
	s.True(outcome.LeveledUp)
	s.Equal(int64(2), outcome.Stats.Level)
	s.Equal(int64(120), outcome.Stats.HighScore)
	// baseline record was version 1
	s.Equal(int64(3), outcome.Version)

	// Step 3: bob plays one better session
	_, err = s.app.StatsService.RecordSession(s.ctx, bob.PlayerID, model.SessionDelta{
		Score: 300, GamesPlayed: 1, PlayTime: 30,
	})
	s.Require().NoError(err)

	// Step 4: leaderboard ranks bob first
	board, err := s.app.StatsService.Leaderboard(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(board, 2)
	s.Equal("bob", board[0].Username)
	s.Equal(1, board[0].Rank)
	s.Equal("alice", board[1].Username)

	// Step 5: admin sees the aggregate
	dash, err := s.app.AdminService.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, dash.TotalPlayers)
	s.Equal(2, dash.OnlinePlayers)
	s.Equal(3, dash.TotalGames)
	s.Equal(int64(300), dash.MaxScore)
}

func (s *IntegrationSuite) TestDeletePlayerRevokesSessions() {
	alice := s.register("alice-id", "alice")

	s.Require().NoError(s.app.AdminService.DeletePlayer(s.ctx, alice.PlayerID))

	_, err := s.app.AuthService.ValidateSession(alice.Token)
	s.ErrorIs(err, auth.ErrInvalidSession)

	_, err = s.app.Storage.GetStats(s.ctx, alice.PlayerID)
	s.ErrorIs(err, model.ErrStatsNotFound)
}

func (s *IntegrationSuite) TestAdminUsernamesFromConfig() {
	ops := s.register("ops-id", "ops")
	s.True(ops.Player.IsAdmin)

	alice := s.register("alice-id", "alice")
	s.False(alice.Player.IsAdmin)
}

func (s *IntegrationSuite) TestSweepDropsExpiredSessionsAndIdleHubs() {
	alice := s.register("alice-id", "alice")
	s.app.HubManager.GetOrCreateHub(alice.PlayerID)

	s.app.MockClock.Advance(2 * time.Hour)
	s.app.Sweep()

	_, err := s.app.AuthService.ValidateSession(alice.Token)
	s.ErrorIs(err, auth.ErrInvalidSession)
	s.Nil(s.app.HubManager.GetHub(alice.PlayerID))
}

func (s *IntegrationSuite) TestRunMaintenanceStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.app.RunMaintenance(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("RunMaintenance did not return after cancel")
	}
}

func (s *IntegrationSuite) TestSessionPolicyFromConfig() {
	app := NewTestApp(Config{
		StatsConfig: EnvConfig{SessionMaxScore: 1000}.FactoryConfig(nil).StatsConfig,
	})
	app.MockIDs.Queue("p-1")
	session, err := app.AuthService.Register(s.ctx, "carol", "carol@example.com", "secret123")
	s.Require().NoError(err)

	_, err = app.StatsService.RecordSession(s.ctx, session.PlayerID, model.SessionDelta{Score: 5000, GamesPlayed: 1})
	s.ErrorIs(err, model.ErrImplausibleSession)
}

func TestNewSelectsStorage(t *testing.T) {
	app, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, app.Storage)
	require.NoError(t, app.Close())

	app, err = New(Config{StorageType: StorageTypeSQLite, SQLitePath: filepath.Join(t.TempDir(), "app.db")})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, app.Storage)
	require.NoError(t, app.Close())
}

func TestNewRejectsIncompleteStorageConfig(t *testing.T) {
	_, err := New(Config{StorageType: StorageTypeRedis})
	assert.Error(t, err)

	_, err = New(Config{StorageType: StorageTypeSQLite})
	assert.Error(t, err)

	_, err = New(Config{StorageType: "postgres"})
	assert.ErrorContains(t, err, "invalid StorageType")
}

func TestParseEnvConfigDefaults(t *testing.T) {
	cfg, err := parseEnvConfig(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, StorageTypeMemory, cfg.StorageType)
	assert.Equal(t, "rublocks.db", cfg.SQLitePath)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 24*time.Hour, cfg.SessionDuration)
	assert.Equal(t, 5, cfg.StatsMaxRetries)
	assert.Empty(t, cfg.AdminUsernames)
	assert.Zero(t, cfg.SessionMaxScore)
}

func TestParseEnvConfigOverrides(t *testing.T) {
	cfg, err := parseEnvConfig(env.Options{Environment: map[string]string{
		"STORAGE_TYPE":          "redis",
		"REDIS_URL":             "redis://cache:6379/2",
		"HTTP_PORT":             "9090",
		"SESSION_DURATION":      "30m",
		"ADMIN_USERNAMES":       "ops,root_admin",
		"STATS_MAX_RETRIES":     "8",
		"SESSION_MAX_PLAY_TIME": "7200",
		"SESSION_MAX_SCORE":     "1000000",
		"LOG_LEVEL":             "DEBUG",
	}})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"ops", "root_admin"}, cfg.AdminUsernames)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	fc := cfg.FactoryConfig(nil)
	require.NotNil(t, fc.RedisConfig)
	assert.Equal(t, "redis://cache:6379/2", fc.RedisConfig.URL)
	assert.Equal(t, 30*time.Minute, fc.AuthConfig.SessionDuration)
	assert.Equal(t, 8, fc.StatsConfig.MaxRetries)
	assert.Equal(t, int64(7200), fc.StatsConfig.Policy.MaxPlayTime)
	assert.Equal(t, int64(1000000), fc.StatsConfig.Policy.MaxScore)
}

func TestParseEnvConfigRejectsBadValues(t *testing.T) {
	_, err := parseEnvConfig(env.Options{Environment: map[string]string{"HTTP_PORT": "eighty"}})
	assert.Error(t, err)

	_, err = parseEnvConfig(env.Options{Environment: map[string]string{"SESSION_MAX_SCORE": "-1"}})
	assert.Error(t, err)
}
