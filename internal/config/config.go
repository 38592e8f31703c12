package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DBPath       string `env:"DB_PATH" envDefault:"data/weaver.db"`
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// HostAllowlist holds the user IDs allowed to create and run games.
	HostAllowlist []string `env:"HOST_ALLOWLIST" envSeparator:","`
	// AdminKeyHash is a bcrypt hash of the operator key. Empty disables the
	// operator endpoint.
	AdminKeyHash string        `env:"ADMIN_KEY_HASH"`
	LeadIn       time.Duration `env:"AUTO_ADVANCE_LEAD_IN" envDefault:"5s"`
	SeedDemo     bool          `env:"SEED_DEMO" envDefault:"false"`
	SPADir       string        `env:"SPA_DIR"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	switch cfg.StoreBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.LeadIn < 0 {
		return nil, fmt.Errorf("AUTO_ADVANCE_LEAD_IN must not be negative, got %s", cfg.LeadIn)
	}
	return &cfg, nil
}
