// Package sqlite provides a SQLite-backed player store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/storage"
	"github.com/mcoot/rublocks/internal/storage/sqlite/migrations"
)

// ErrDuplicate is returned when a write would break a uniqueness constraint
var ErrDuplicate = errors.New("duplicate record")

// Store persists players, credentials, stats and session history in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Player operations

func (s *Store) SavePlayer(ctx context.Context, player *model.Player) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO players (id, username, email, avatar, is_admin, is_online, created_at, last_login)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   username = excluded.username,
		   email = excluded.email,
		   avatar = excluded.avatar,
		   is_admin = excluded.is_admin,
		   is_online = excluded.is_online,
		   created_at = excluded.created_at,
		   last_login = excluded.last_login`,
		string(player.ID),
		player.Username,
		player.Email,
		player.Avatar,
		boolToInt(player.IsAdmin),
		boolToInt(player.IsOnline),
		toMillis(player.CreatedAt),
		toMillis(player.LastLogin),
	)
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

const playerColumns = `id, username, email, avatar, is_admin, is_online, created_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*model.Player, error) {
	var (
		p                 model.Player
		id                string
		isAdmin, isOnline int
		createdAt, last   int64
	)
	if err := row.Scan(&id, &p.Username, &p.Email, &p.Avatar, &isAdmin, &isOnline, &createdAt, &last); err != nil {
		return nil, err
	}
	p.ID = model.PlayerID(id)
	p.IsAdmin = isAdmin != 0
	p.IsOnline = isOnline != 0
	p.CreatedAt = fromMillis(createdAt)
	p.LastLogin = fromMillis(last)
	return &p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, string(id))
	player, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return player, nil
}

func (s *Store) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := []*model.Player{}
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return players, nil
}

// Registered player operations

func (s *Store) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO registered_players (player_id, username, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		   username = excluded.username,
		   email = excluded.email,
		   password_hash = excluded.password_hash,
		   updated_at = excluded.updated_at`,
		string(rp.PlayerID),
		rp.Username,
		rp.Email,
		rp.PasswordHash,
		toMillis(rp.CreatedAt),
		toMillis(rp.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return s.takenError(ctx, rp)
		}
		return fmt.Errorf("save registered player: %w", err)
	}
	return nil
}

// takenError reports which of the username or email another player holds
func (s *Store) takenError(ctx context.Context, rp *model.RegisteredPlayer) error {
	owner, err := s.GetRegisteredPlayerByUsername(ctx, rp.Username)
	if err == nil && owner.PlayerID != rp.PlayerID {
		return model.ErrUsernameTaken
	}
	if rp.Email != "" {
		owner, err = s.GetRegisteredPlayerByEmail(ctx, rp.Email)
		if err == nil && owner.PlayerID != rp.PlayerID {
			return model.ErrEmailTaken
		}
	}
	return fmt.Errorf("save registered player: %w", ErrDuplicate)
}

func (s *Store) getRegisteredPlayerWhere(ctx context.Context, column, value string) (*model.RegisteredPlayer, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT player_id, username, email, password_hash, created_at, updated_at
		 FROM registered_players WHERE `+column+` = ?`, value)

	var (
		rp                   model.RegisteredPlayer
		playerID             string
		createdAt, updatedAt int64
	)
	err := row.Scan(&playerID, &rp.Username, &rp.Email, &rp.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registered player: %w", err)
	}
	rp.PlayerID = model.PlayerID(playerID)
	rp.CreatedAt = fromMillis(createdAt)
	rp.UpdatedAt = fromMillis(updatedAt)
	return &rp, nil
}

func (s *Store) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayerWhere(ctx, "player_id", string(playerID))
}

func (s *Store) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayerWhere(ctx, "username", username)
}

func (s *Store) GetRegisteredPlayerByEmail(ctx context.Context, email string) (*model.RegisteredPlayer, error) {
	if email == "" {
		return nil, model.ErrPlayerNotFound
	}
	return s.getRegisteredPlayerWhere(ctx, "email", email)
}

func (s *Store) DeleteRegisteredPlayer(ctx context.Context, playerID model.PlayerID) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM registered_players WHERE player_id = ?`, string(playerID)); err != nil {
		return fmt.Errorf("delete registered player: %w", err)
	}
	return nil
}

// Stats operations

func (s *Store) GetStats(ctx context.Context, playerID model.PlayerID) (*model.VersionedStats, error) {
	var vs model.VersionedStats
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT games_played, high_score, total_play_time, coins, experience, level, version
		 FROM player_stats WHERE player_id = ?`, string(playerID),
	).Scan(
		&vs.Stats.GamesPlayed,
		&vs.Stats.HighScore,
		&vs.Stats.TotalPlayTime,
		&vs.Stats.Coins,
		&vs.Stats.Experience,
		&vs.Stats.Level,
		&vs.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &vs, nil
}

// PutStats inserts when expectedVersion is 0, otherwise updates only the
// row still at expectedVersion. Zero affected rows means another writer won.
func (s *Store) PutStats(ctx context.Context, playerID model.PlayerID, stats model.PlayerStats, expectedVersion int64) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.sqlDB.ExecContext(ctx,
			`INSERT INTO player_stats (player_id, games_played, high_score, total_play_time, coins, experience, level, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1)
			 ON CONFLICT(player_id) DO NOTHING`,
			string(playerID),
			stats.GamesPlayed, stats.HighScore, stats.TotalPlayTime, stats.Coins, stats.Experience, stats.Level,
		)
	} else {
		res, err = s.sqlDB.ExecContext(ctx,
			`UPDATE player_stats SET
			   games_played = ?, high_score = ?, total_play_time = ?, coins = ?, experience = ?, level = ?,
			   version = version + 1
			 WHERE player_id = ? AND version = ?`,
			stats.GamesPlayed, stats.HighScore, stats.TotalPlayTime, stats.Coins, stats.Experience, stats.Level,
			string(playerID), expectedVersion,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("put stats: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("put stats rows affected: %w", err)
	}
	if affected == 0 {
		return 0, model.ErrConflict
	}
	return expectedVersion + 1, nil
}

func (s *Store) DeleteStats(ctx context.Context, playerID model.PlayerID) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM player_stats WHERE player_id = ?`, string(playerID)); err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	return nil
}

func (s *Store) TopByHighScore(ctx context.Context, limit int) ([]storage.StatsEntry, error) {
	if limit <= 0 {
		return []storage.StatsEntry{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id, games_played, high_score, total_play_time, coins, experience, level
		 FROM player_stats
		 ORDER BY high_score DESC, level DESC, player_id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top by high score: %w", err)
	}
	defer rows.Close()

	entries := []storage.StatsEntry{}
	for rows.Next() {
		var (
			e        storage.StatsEntry
			playerID string
		)
		if err := rows.Scan(
			&playerID,
			&e.Stats.GamesPlayed,
			&e.Stats.HighScore,
			&e.Stats.TotalPlayTime,
			&e.Stats.Coins,
			&e.Stats.Experience,
			&e.Stats.Level,
		); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		e.PlayerID = model.PlayerID(playerID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return entries, nil
}

// Game session operations

func (s *Store) SaveGameSession(ctx context.Context, session *model.GameSession) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO game_sessions (id, player_id, score, duration, level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(session.ID),
		string(session.PlayerID),
		session.Score,
		session.Duration,
		session.Level,
		toMillis(session.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save game session: %w", ErrDuplicate)
		}
		return fmt.Errorf("save game session: %w", err)
	}
	return nil
}

func (s *Store) CountGameSessions(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count game sessions: %w", err)
	}
	return count, nil
}

func (s *Store) ClearGameSessions(ctx context.Context) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM game_sessions`)
	if err != nil {
		return 0, fmt.Errorf("clear game sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear game sessions rows affected: %w", err)
	}
	return int(n), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
