package factory

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/rublocks/internal/services/auth"
	"github.com/mcoot/rublocks/internal/services/stats"
	redisstorage "github.com/mcoot/rublocks/internal/storage/redis"
)

// EnvConfig is the server configuration read from the environment
type EnvConfig struct {
	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"rublocks.db"`

	HTTPHost string `env:"HTTP_HOST"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"24h"`
	AdminUsernames  []string      `env:"ADMIN_USERNAMES" envSeparator:","`

	StatsMaxRetries    int   `env:"STATS_MAX_RETRIES" envDefault:"5"`
	SessionMaxPlayTime int64 `env:"SESSION_MAX_PLAY_TIME"`
	SessionMaxScore    int64 `env:"SESSION_MAX_SCORE"`

	MaintenanceInterval time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"5m"`
}

// LoadEnvConfig parses EnvConfig from the process environment
func LoadEnvConfig() (EnvConfig, error) {
	return parseEnvConfig(env.Options{})
}

func parseEnvConfig(opts env.Options) (EnvConfig, error) {
	cfg, err := env.ParseAsWithOptions[EnvConfig](opts)
	if err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StatsMaxRetries < 0 || cfg.SessionMaxPlayTime < 0 || cfg.SessionMaxScore < 0 {
		return EnvConfig{}, fmt.Errorf("parse env: retry and session limits must not be negative")
	}
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info
func (e EnvConfig) SlogLevel() slog.Level {
	switch strings.ToLower(e.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FactoryConfig converts the environment into factory configuration
func (e EnvConfig) FactoryConfig(logger *slog.Logger) Config {
	cfg := Config{
		Logger:      logger,
		StorageType: e.StorageType,
		SQLitePath:  e.SQLitePath,
		AuthConfig: auth.Config{
			SessionDuration: e.SessionDuration,
			AdminUsernames:  e.AdminUsernames,
		},
		StatsConfig: stats.Config{
			MaxRetries: e.StatsMaxRetries,
			Policy: stats.SessionPolicy{
				MaxPlayTime: e.SessionMaxPlayTime,
				MaxScore:    e.SessionMaxScore,
			},
		},
	}
	if e.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		if e.RedisURL != "" {
			redisCfg.URL = e.RedisURL
		}
		cfg.RedisConfig = &redisCfg
	}
	return cfg
}
