package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// getJSON loads key into dest, returning notFound when the key is absent
func getJSON(ctx context.Context, g getter, key string, dest any, notFound error) error {
	data, err := g.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, playerKey(player.ID), data, 0)
	pipe.SAdd(ctx, playersIndexKey(), string(player.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	if err := getJSON(ctx, s.client, playerKey(id), &player, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, playerKey(id))
	pipe.SRem(ctx, playersIndexKey(), string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.SMembers(ctx, playersIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKey(model.PlayerID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Index entry without a record
		}
		var player model.Player
		if err := json.Unmarshal([]byte(str), &player); err != nil {
			continue
		}
		players = append(players, &player)
	}

	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

// Registered player operations

// maxClaimAttempts bounds retries of the optimistic index claim
const maxClaimAttempts = 5

// SaveRegisteredPlayer claims the username and email index keys inside a
// WATCH transaction. A concurrent claim aborts EXEC and the check reruns.
func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	recordKey := registeredPlayerKey(rp.PlayerID)
	userKey := usernameIndexKey(rp.Username)
	keys := []string{recordKey, userKey}
	var mailKey string
	if rp.Email != "" {
		mailKey = emailIndexKey(rp.Email)
		keys = append(keys, mailKey)
	}

	claim := func(tx *redis.Tx) error {
		if err := checkIndexOwner(ctx, tx, userKey, rp.PlayerID, model.ErrUsernameTaken); err != nil {
			return err
		}
		if mailKey != "" {
			if err := checkIndexOwner(ctx, tx, mailKey, rp.PlayerID, model.ErrEmailTaken); err != nil {
				return err
			}
		}

		var previous model.RegisteredPlayer
		err := getJSON(ctx, tx, recordKey, &previous, model.ErrPlayerNotFound)
		hasPrevious := err == nil
		if err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if hasPrevious && previous.Username != rp.Username {
				pipe.Del(ctx, usernameIndexKey(previous.Username))
			}
			if hasPrevious && previous.Email != "" && previous.Email != rp.Email {
				pipe.Del(ctx, emailIndexKey(previous.Email))
			}
			pipe.Set(ctx, recordKey, data, 0)
			pipe.Set(ctx, userKey, string(rp.PlayerID), 0)
			if mailKey != "" {
				pipe.Set(ctx, mailKey, string(rp.PlayerID), 0)
			}
			return nil
		})
		return err
	}

	for range maxClaimAttempts {
		err := s.client.Watch(ctx, claim, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return model.ErrConflict
}

// checkIndexOwner returns taken when key points at a player other than id
func checkIndexOwner(ctx context.Context, g getter, key string, id model.PlayerID, taken error) error {
	owner, err := g.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if model.PlayerID(owner) != id {
		return taken
	}
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	var rp model.RegisteredPlayer
	if err := getJSON(ctx, s.client, registeredPlayerKey(playerID), &rp, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayerByIndex(ctx, usernameIndexKey(username))
}

func (s *Storage) GetRegisteredPlayerByEmail(ctx context.Context, email string) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayerByIndex(ctx, emailIndexKey(email))
}

func (s *Storage) getRegisteredPlayerByIndex(ctx context.Context, indexKey string) (*model.RegisteredPlayer, error) {
	playerIDStr, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerIDStr))
}

func (s *Storage) DeleteRegisteredPlayer(ctx context.Context, playerID model.PlayerID) error {
	rp, err := s.GetRegisteredPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, registeredPlayerKey(playerID))
	pipe.Del(ctx, usernameIndexKey(rp.Username))
	if rp.Email != "" {
		pipe.Del(ctx, emailIndexKey(rp.Email))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Stats operations

func (s *Storage) GetStats(ctx context.Context, playerID model.PlayerID) (*model.VersionedStats, error) {
	var vs model.VersionedStats
	if err := getJSON(ctx, s.client, statsKey(playerID), &vs, model.ErrStatsNotFound); err != nil {
		return nil, err
	}
	return &vs, nil
}

// PutStats runs the version check and write inside a WATCH/MULTI
// transaction; a concurrent writer touching the key aborts EXEC.
func (s *Storage) PutStats(ctx context.Context, playerID model.PlayerID, stats model.PlayerStats, expectedVersion int64) (int64, error) {
	key := statsKey(playerID)
	var newVersion int64

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var current model.VersionedStats
		err := getJSON(ctx, tx, key, &current, model.ErrStatsNotFound)
		if err != nil && !errors.Is(err, model.ErrStatsNotFound) {
			return err
		}
		if current.Version != expectedVersion {
			return model.ErrConflict
		}

		next := model.VersionedStats{Stats: stats, Version: current.Version + 1}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, leaderboardKey(), redis.Z{
				Score:  float64(stats.HighScore),
				Member: string(playerID),
			})
			return nil
		})
		if err != nil {
			return err
		}
		newVersion = next.Version
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return 0, model.ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (s *Storage) DeleteStats(ctx context.Context, playerID model.PlayerID) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, statsKey(playerID))
	pipe.ZRem(ctx, leaderboardKey(), string(playerID))
	_, err := pipe.Exec(ctx)
	return err
}

// TopByHighScore reads the leaderboard ZSET. Members tied with the last
// score in range are all loaded so the level and ID tie-breaks apply
// across the whole tied group before truncating.
func (s *Storage) TopByHighScore(ctx context.Context, limit int) ([]storage.StatsEntry, error) {
	if limit <= 0 {
		return []storage.StatsEntry{}, nil
	}

	top, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return []storage.StatsEntry{}, nil
	}

	cutoff := top[len(top)-1].Score
	ids, err := s.client.ZRevRangeByScore(ctx, leaderboardKey(), &redis.ZRangeBy{
		Min: strconv.FormatFloat(cutoff, 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = statsKey(model.PlayerID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]storage.StatsEntry, 0, len(values))
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var vs model.VersionedStats
		if err := json.Unmarshal([]byte(str), &vs); err != nil {
			continue
		}
		entries = append(entries, storage.StatsEntry{PlayerID: model.PlayerID(ids[i]), Stats: vs.Stats})
	}

	storage.SortRanking(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Game session operations

func (s *Storage) SaveGameSession(ctx context.Context, session *model.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, gameSessionKey(session.ID), data, 0)
	pipe.SAdd(ctx, gameSessionsIndexKey(), string(session.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) CountGameSessions(ctx context.Context) (int, error) {
	count, err := s.client.SCard(ctx, gameSessionsIndexKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Storage) ClearGameSessions(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, gameSessionsIndexKey()).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = gameSessionKey(model.GameSessionID(id))
		members[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, gameSessionsIndexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}
