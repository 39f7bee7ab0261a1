package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var backends = []string{BackendRedis, BackendSQLite, BackendMemory}

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"redis"`
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"./data/campaigns.db"`

	SystemTemplate string `env:"SYSTEM_TEMPLATE" envDefault:"default"`

	JournalEnabled bool `env:"JOURNAL_ENABLED" envDefault:"true"`
	JournalLimit   int  `env:"JOURNAL_LIMIT" envDefault:"200"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if !slices.Contains(backends, cfg.StorageBackend) {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (want one of %s)", cfg.StorageBackend, strings.Join(backends, ", "))
	}
	if cfg.JournalLimit < 1 {
		return nil, fmt.Errorf("JOURNAL_LIMIT must be at least 1, got %d", cfg.JournalLimit)
	}
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
