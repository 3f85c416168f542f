package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/rublocks/internal/dependencies/clock"
	"github.com/mcoot/rublocks/internal/dependencies/idgen"
	"github.com/mcoot/rublocks/internal/events"
	"github.com/mcoot/rublocks/internal/services/admin"
	"github.com/mcoot/rublocks/internal/services/auth"
	"github.com/mcoot/rublocks/internal/services/stats"
	"github.com/mcoot/rublocks/internal/storage"
	"github.com/mcoot/rublocks/internal/storage/memory"
	redisstorage "github.com/mcoot/rublocks/internal/storage/redis"
	"github.com/mcoot/rublocks/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// App contains all wired application components
type App struct {
	Storage storage.Storage

	Clock clock.Clock
	IDs   idgen.Generator

	AuthService  *auth.Service
	StatsService *stats.Service
	AdminService *admin.Service
	HubManager   *events.HubManager

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// AuthConfig zero values fall back to auth.DefaultConfig()
	AuthConfig auth.Config
	// StatsConfig zero values fall back to stats.DefaultConfig()
	StatsConfig stats.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(store, clock.New(), idgen.New(), cfg, logger), nil
}

func openStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sqlite'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, ids idgen.Generator, cfg Config, logger *slog.Logger) *App {
	hubManager := events.NewHubManager(logger)
	notifier := stats.MultiNotifier{stats.NewLogNotifier(logger), hubManager}

	authService := auth.New(store, clk, ids, logger, cfg.AuthConfig)
	statsService := stats.New(store, clk, ids, notifier, logger, cfg.StatsConfig)
	adminService := admin.New(store, authService, logger)

	return &App{
		Storage:      store,
		Clock:        clk,
		IDs:          ids,
		AuthService:  authService,
		StatsService: statsService,
		AdminService: adminService,
		HubManager:   hubManager,
		logger:       logger,
	}
}

// RunMaintenance periodically drops expired sessions and idle event hubs
// until ctx is cancelled. A non-positive interval disables it.
func (a *App) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep()
		}
	}
}

// Sweep runs one maintenance pass
func (a *App) Sweep() {
	a.AuthService.CleanExpiredSessions()
	a.HubManager.CleanupEmptyHubs()
}

// Close stops event streams and releases the storage backend
func (a *App) Close() error {
	a.HubManager.Close()
	if closer, ok := a.Storage.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Error("failed to close storage", slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}
