package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	emailIndex        map[string]model.PlayerID
	stats             map[model.PlayerID]model.VersionedStats
	gameSessions      map[model.GameSessionID]*model.GameSession
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		emailIndex:        make(map[string]model.PlayerID),
		stats:             make(map[model.PlayerID]model.VersionedStats),
		gameSessions:      make(map[model.GameSessionID]*model.GameSession),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *player
	s.players[player.ID] = &p
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]*model.Player, 0, len(s.players))
	for _, player := range s.players {
		p := *player
		players = append(players, &p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.usernameIndex[rp.Username]; ok && owner != rp.PlayerID {
		return model.ErrUsernameTaken
	}
	if owner, ok := s.emailIndex[rp.Email]; ok && rp.Email != "" && owner != rp.PlayerID {
		return model.ErrEmailTaken
	}

	if previous, ok := s.registeredPlayers[rp.PlayerID]; ok {
		delete(s.usernameIndex, previous.Username)
		delete(s.emailIndex, previous.Email)
	}

	r := *rp
	s.registeredPlayers[rp.PlayerID] = &r
	s.usernameIndex[rp.Username] = rp.PlayerID
	if rp.Email != "" {
		s.emailIndex[rp.Email] = rp.PlayerID
	}
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registeredPlayerLocked(playerID)
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.registeredPlayerLocked(playerID)
}

func (s *Storage) GetRegisteredPlayerByEmail(ctx context.Context, email string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.emailIndex[email]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.registeredPlayerLocked(playerID)
}

func (s *Storage) DeleteRegisteredPlayer(ctx context.Context, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil
	}
	delete(s.usernameIndex, rp.Username)
	delete(s.emailIndex, rp.Email)
	delete(s.registeredPlayers, playerID)
	return nil
}

func (s *Storage) registeredPlayerLocked(playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	r := *rp
	return &r, nil
}

// Stats operations

func (s *Storage) GetStats(ctx context.Context, playerID model.PlayerID) (*model.VersionedStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.stats[playerID]
	if !ok {
		return nil, model.ErrStatsNotFound
	}
	return &vs, nil
}

func (s *Storage) PutStats(ctx context.Context, playerID model.PlayerID, stats model.PlayerStats, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.stats[playerID].Version
	if current != expectedVersion {
		return 0, model.ErrConflict
	}
	next := model.VersionedStats{Stats: stats, Version: current + 1}
	s.stats[playerID] = next
	return next.Version, nil
}

func (s *Storage) DeleteStats(ctx context.Context, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, playerID)
	return nil
}

func (s *Storage) TopByHighScore(ctx context.Context, limit int) ([]storage.StatsEntry, error) {
	if limit <= 0 {
		return []storage.StatsEntry{}, nil
	}

	s.mu.RLock()
	entries := make([]storage.StatsEntry, 0, len(s.stats))
	for id, vs := range s.stats {
		entries = append(entries, storage.StatsEntry{PlayerID: id, Stats: vs.Stats})
	}
	s.mu.RUnlock()

	storage.SortRanking(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Game session operations

func (s *Storage) SaveGameSession(ctx context.Context, session *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := *session
	s.gameSessions[session.ID] = &gs
	return nil
}

func (s *Storage) CountGameSessions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gameSessions), nil
}

func (s *Storage) ClearGameSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.gameSessions)
	clear(s.gameSessions)
	return n, nil
}
