package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rublocks/internal/api"
	"github.com/mcoot/rublocks/internal/cli"
	"github.com/mcoot/rublocks/internal/factory"
	"github.com/mcoot/rublocks/internal/services/auth"
	"github.com/mcoot/rublocks/internal/testutil"
)

// cliRunner executes CLI commands in-process against a server
type cliRunner struct {
	serverURL string
	tokenFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()
	return &cliRunner{
		serverURL: serverURL,
		tokenFile: filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	return r.runContext(context.Background(), &bytes.Buffer{}, args...)
}

func (r *cliRunner) runContext(ctx context.Context, out interface {
	Write([]byte) (int, error)
	String() string
}, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := cli.NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(fullArgs)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	url string
	app *factory.App
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := testutil.NopLogger()

	app, err := factory.New(factory.Config{
		Logger:      logger,
		StorageType: factory.StorageTypeSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "e2e.db"),
		AuthConfig:  auth.Config{AdminUsernames: []string{"root_admin"}},
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:       logger,
		AuthService:  app.AuthService,
		StatsService: app.StatsService,
		AdminService: app.AdminService,
		HubManager:   app.HubManager,
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serverCfg := api.DefaultServerConfig()
	serverCfg.ShutdownTimeout = 5 * time.Second
	server := api.NewServer(router, serverCfg, logger)

	done := make(chan error, 1)
	go func() { done <- server.Serve(listener) }()

	t.Cleanup(func() {
		app.HubManager.Close()
		assert.NoError(t, server.Shutdown(context.Background()))
		assert.NoError(t, <-done)
		assert.NoError(t, app.Close())
	})

	serverURL := "http://" + listener.Addr().String()
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{url: serverURL, app: app}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond, "server did not become ready")
}

func parseJSON[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCLIHealth(t *testing.T) {
	t.Setenv("RUBLOCKS_TOKEN", "")
	server := startTestServer(t)
	runner := newCLIRunner(t, server.url)

	out, err := runner.run("health")
	require.NoError(t, err, out)
	assert.Equal(t, "ok", parseJSON[cli.HealthResult](t, out).Status)

	out, err = runner.run("--output", "text", "health")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Status: ok")
}

func TestCLIRejectsUnknownOutputFormat(t *testing.T) {
	t.Setenv("RUBLOCKS_TOKEN", "")
	server := startTestServer(t)
	runner := newCLIRunner(t, server.url)

	_, err := runner.run("--output", "yaml", "health")
	assert.ErrorContains(t, err, "invalid --output")
}

func TestCLIPlayerSessionFlow(t *testing.T) {
	t.Setenv("RUBLOCKS_TOKEN", "")
	server := startTestServer(t)
	alice := newCLIRunner(t, server.url)

	// Register saves the token for later commands
	out, err := alice.run("player", "register", "--user", "alice", "--email", "alice@example.com", "--pass", "secret123")
	require.NoError(t, err, out)
	registered := parseJSON[cli.AuthResult](t, out)
	assert.Equal(t, "alice", registered.Player.Username)

	saved, err := os.ReadFile(alice.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, registered.SessionToken, string(saved))

	out, err = alice.run("player", "me")
	require.NoError(t, err, out)
	assert.Equal(t, registered.Player.ID, parseJSON[cli.Player](t, out).ID)

	// First session levels alice up
	out, err = alice.run("session", "submit", "--score", "280", "--play-time", "120", "--coins", "10", "--xp", "160")
	require.NoError(t, err, out)
	result := parseJSON[cli.SessionResult](t, out)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, int64(2), result.Stats.Level)

	// A lower score keeps the high score
	out, err = alice.run("session", "submit", "--score", "50", "--xp", "10")
	require.NoError(t, err, out)
	result = parseJSON[cli.SessionResult](t, out)
	assert.Equal(t, int64(280), result.Stats.HighScore)
	assert.Equal(t, int64(2), result.Stats.GamesPlayed)
	assert.False(t, result.LeveledUp)

	// Negative values are rejected by the server
	out, err = alice.run("session", "submit", "--score", "-1")
	require.Error(t, err)
	var apiErr *cli.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "INVALID_DELTA", apiErr.Code)

	out, err = alice.run("stats", "show")
	require.NoError(t, err, out)
	profile := parseJSON[cli.Profile](t, out)
	assert.Equal(t, cli.Stats{
		GamesPlayed:   2,
		HighScore:     280,
		TotalPlayTime: 120,
		Coins:         10,
		Experience:    170,
		Level:         2,
	}, profile.Stats)

	// Anyone can look up another player's stats
	bob := newCLIRunner(t, server.url)
	out, err = bob.run("stats", "show", "--player", registered.Player.ID)
	require.NoError(t, err, out)
	assert.Equal(t, int64(280), parseJSON[cli.Profile](t, out).Stats.HighScore)

	out, err = bob.run("--output", "text", "leaderboard", "--limit", "5")
	require.NoError(t, err, out)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "alice")

	// Logout drops the token file
	out, err = alice.run("player", "logout")
	require.NoError(t, err, out)
	_, err = os.Stat(alice.tokenFile)
	assert.True(t, os.IsNotExist(err))

	out, err = alice.run("player", "me")
	assert.Error(t, err, out)
}

func TestCLILoginByEmail(t *testing.T) {
	t.Setenv("RUBLOCKS_TOKEN", "")
	server := startTestServer(t)
	runner := newCLIRunner(t, server.url)

	_, err := runner.run("player", "register", "--user", "carol", "--email", "carol@example.com", "--pass", "secret123")
	require.NoError(t, err)

	fresh := newCLIRunner(t, server.url)
	out, err := fresh.run("player", "login", "--user", "carol@example.com", "--pass", "secret123")
	require.NoError(t, err, out)
	assert.Equal(t, "carol", parseJSON[cli.AuthResult](t, out).Player.Username)

	_, err = fresh.run("player", "login", "--user", "carol", "--pass", "wrong-pass")
	var apiErr *cli.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestCLIAdminFlow(t *testing.T) {
	t.Setenv("RUBLOCKS_TOKEN", "")
	server := startTestServer(t)

	admin := newCLIRunner(t, server.url)
	_, err := admin.run("player", "register", "--user", "root_admin", "--email", "ops@example.com", "--pass", "secret123")
	require.NoError(t, err)

	alice := newCLIRunner(t, server.url)
	out, err := alice.run("player", "register", "--user", "alice", "--email", "alice@example.com", "--pass", "secret123")
	require.NoError(t, err)
	aliceID := parseJSON[cli.AuthResult](t, out).Player.ID

	_, err = alice.run("session", "submit", "--score", "900")
	require.NoError(t, err)

	// Regular players cannot use admin commands
	_, err = alice.run("admin", "dashboard")
	var apiErr *cli.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	out, err = admin.run("admin", "dashboard")
	require.NoError(t, err, out)
	dash := parseJSON[cli.Dashboard](t, out)
	assert.Equal(t, 2, dash.TotalPlayers)
	assert.Equal(t, 1, dash.TotalGames)
	assert.Equal(t, int64(900), dash.MaxScore)

	out, err = admin.run("admin", "players", "--query", "ALICE")
	require.NoError(t, err, out)
	list := parseJSON[cli.PlayerList](t, out)
	require.Len(t, list.Players, 1)
	assert.Equal(t, aliceID, list.Players[0].Player.ID)

	_, err = admin.run("admin", "reset-stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err = admin.run("admin", "clear-sessions", "--yes")
	require.NoError(t, err, out)
	assert.Equal(t, 1, parseJSON[cli.SessionsCleared](t, out).SessionsRemoved)

	out, err = admin.run("admin", "reset-stats", "--yes")
	require.NoError(t, err, out)
	assert.Equal(t, 2, parseJSON[cli.StatsReset](t, out).PlayersReset)

	out, err = admin.run("admin", "dashboard")
	require.NoError(t, err, out)
	dash = parseJSON[cli.Dashboard](t, out)
	assert.Equal(t, 0, dash.TotalGames)
	assert.Equal(t, int64(0), dash.MaxScore)

	out, err = admin.run("admin", "delete", aliceID)
	require.NoError(t, err, out)

	out, err = admin.run("leaderboard")
	require.NoError(t, err, out)
	board := parseJSON[cli.Leaderboard](t, out)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "root_admin", board.Entries[0].Username)

	_, err = alice.run("player", "me")
	assert.Error(t, err)
}

func TestCLIEventsStream(t *testing.T) {
	t.Setenv("RUBLOCKS_TOKEN", "")
	server := startTestServer(t)
	runner := newCLIRunner(t, server.url)

	out, err := runner.run("player", "register", "--user", "dave", "--email", "dave@example.com", "--pass", "secret123")
	require.NoError(t, err)
	token := parseJSON[cli.AuthResult](t, out).SessionToken

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, err := runner.runContext(ctx, stream, "--output", "text", "events")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stream.String(), "connected")
	}, 5*time.Second, 20*time.Millisecond)

	// Report the session over plain HTTP; the CLI's globals belong to the stream
	body := strings.NewReader(`{"score":10,"experience_earned":120}`)
	req, err := http.NewRequest(http.MethodPost, server.url+"/api/v1/sessions", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return strings.Contains(stream.String(), "level up: 1 -> 2")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("events command did not stop after cancel")
	}
	assert.Contains(t, stream.String(), "Disconnected")
}
