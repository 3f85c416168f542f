package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/rublocks/internal/dependencies/clock"
	"github.com/mcoot/rublocks/internal/dependencies/idgen"
	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already registered")
	ErrValidation         = errors.New("validation failed")
)

// DefaultAvatar is assigned to newly registered players
const DefaultAvatar = "default-avatar.png"

// Session represents an authenticated session
type Session struct {
	Token     string
	PlayerID  model.PlayerID
	Player    model.Player
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service handles registration, login and session management
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	ids     idgen.Generator
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	sessionDuration time.Duration
	adminUsernames  []string
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
	AdminUsernames  []string
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, ids idgen.Generator, logger *slog.Logger, cfg Config) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		ids:             ids,
		logger:          logger,
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
		adminUsernames:  cfg.AdminUsernames,
	}
}

// Register creates an account, its baseline stats and a session
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	// Fast path only; the store's claim below is authoritative
	if _, err := s.storage.GetRegisteredPlayerByUsername(ctx, username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}
	if _, err := s.storage.GetRegisteredPlayerByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	playerID := model.PlayerID(s.ids.NewID())
	now := s.clock.Now()

	player := &model.Player{
		ID:        playerID,
		Username:  username,
		Email:     email,
		Avatar:    DefaultAvatar,
		IsAdmin:   s.isAdmin(username),
		IsOnline:  true,
		CreatedAt: now,
		LastLogin: now,
	}

	registeredPlayer := &model.RegisteredPlayer{
		PlayerID:     playerID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Credentials go first: they claim the username and email
	if err := s.storage.SaveRegisteredPlayer(ctx, registeredPlayer); err != nil {
		switch {
		case errors.Is(err, model.ErrUsernameTaken):
			return nil, ErrUsernameExists
		case errors.Is(err, model.ErrEmailTaken):
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		s.rollbackRegistration(ctx, playerID)
		return nil, fmt.Errorf("save player: %w", err)
	}
	if _, err := s.storage.PutStats(ctx, playerID, model.NewPlayerStats(), 0); err != nil {
		s.rollbackRegistration(ctx, playerID)
		return nil, fmt.Errorf("create baseline stats: %w", err)
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(playerID)),
		slog.String("username", username),
	)

	return s.createSession(player)
}

// rollbackRegistration removes whatever a failed registration wrote.
// Credentials go last so the username stays claimed until the rest is gone.
func (s *Service) rollbackRegistration(ctx context.Context, playerID model.PlayerID) {
	ctx = context.WithoutCancel(ctx)
	steps := []struct {
		name string
		fn   func(context.Context, model.PlayerID) error
	}{
		{"stats", s.storage.DeleteStats},
		{"player", s.storage.DeletePlayer},
		{"credentials", s.storage.DeleteRegisteredPlayer},
	}
	for _, step := range steps {
		if err := step.fn(ctx, playerID); err != nil {
			s.logger.Error("failed to roll back registration",
				slog.String("player_id", string(playerID)),
				slog.String("step", step.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Login authenticates by username or email and creates a session
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (*Session, error) {
	identifier := strings.TrimSpace(usernameOrEmail)

	var (
		rp  *model.RegisteredPlayer
		err error
	)
	if strings.Contains(identifier, "@") {
		rp, err = s.storage.GetRegisteredPlayerByEmail(ctx, normalizeEmail(identifier))
	} else {
		rp, err = s.storage.GetRegisteredPlayerByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rp.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	player, err := s.storage.GetPlayer(ctx, rp.PlayerID)
	if err != nil {
		return nil, err
	}

	player.LastLogin = s.clock.Now()
	player.IsOnline = true
	player.IsAdmin = s.isAdmin(player.Username)
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	return s.createSession(player)
}

// Logout ends the session and marks the player offline
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.ValidateSession(token)
	if err != nil {
		return err
	}
	s.InvalidateSession(token)

	player, err := s.storage.GetPlayer(ctx, session.PlayerID)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil
		}
		return err
	}
	player.IsOnline = false
	return s.storage.SavePlayer(ctx, player)
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// InvalidatePlayerSessions removes every session belonging to a player
func (s *Service) InvalidatePlayerSessions(playerID model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if session.PlayerID == playerID {
			delete(s.sessions, token)
		}
	}
}

// GetPlayer returns the player for a session token
func (s *Service) GetPlayer(token string) (*model.Player, error) {
	session, err := s.ValidateSession(token)
	if err != nil {
		return nil, err
	}
	return &session.Player, nil
}

// isAdmin reports whether username is configured as an administrator
func (s *Service) isAdmin(username string) bool {
	return slices.Contains(s.adminUsernames, username)
}

// createSession creates a new session for a player
func (s *Service) createSession(player *model.Player) (*Session, error) {
	token := s.generateToken("sess_")
	now := s.clock.Now()

	session := &Session{
		Token:     token,
		PlayerID:  player.ID,
		Player:    *player,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return session, nil
}

// generateToken generates a random session token with a prefix
func (s *Service) generateToken(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// CleanExpiredSessions removes expired sessions (call periodically)
func (s *Service) CleanExpiredSessions() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}
