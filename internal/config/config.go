// Package config loads server settings from the environment. An optional
// .env file is read first; real environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the root configuration of the swap server.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	NATS      NATSConfig
	Matching  MatchingConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the WebSocket gateway settings.
type ServerConfig struct {
	ListenAddr        string        `env:"LISTEN_ADDR"        env-default:":8080"`
	Name              string        `env:"SERVER_NAME"`
	WorkerPoolSize    int           `env:"WORKER_POOL_SIZE"   env-default:"256"`
	MaxConnections    int           `env:"MAX_CONNECTIONS"    env-default:"100000"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT"       env-default:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"      env-default:"10s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" env-default:"30s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT"  env-default:"10s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"    env-default:"5s"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend        string `env:"STORE_BACKEND"   env-default:"memory"`
	RedisAddr      string `env:"REDIS_ADDR"      env-default:"localhost:6379"`
	RedisNamespace string `env:"REDIS_NAMESPACE" env-default:"skillswap:"`
	DatabaseURL    string `env:"DATABASE_URL"`
}

// NATSConfig configures change notifications. An empty URL disables them.
type NATSConfig struct {
	URL string `env:"NATS_URL"`
}

// MatchingConfig holds product policies of the matching engine.
type MatchingConfig struct {
	StickyPass bool `env:"STICKY_PASS" env-default:"false"`
	DeckLimit  int  `env:"DECK_LIMIT"  env-default:"50"`
}

// RateLimitConfig toggles per-user throttling.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" env-default:"true"`
}

// Load reads envFile (or ./.env when envFile is empty and the file exists)
// into the process environment, then decodes the environment into a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if cfg.Server.Name == "" {
		cfg.Server.Name, _ = os.Hostname()
		if cfg.Server.Name == "" {
			cfg.Server.Name = "swap-1"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage returns a description of every supported environment variable.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return desc
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis backend")
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Server.WorkerPoolSize <= 0 {
		return fmt.Errorf("config: WORKER_POOL_SIZE must be > 0")
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("config: MAX_CONNECTIONS must be > 0")
	}
	if c.Server.HeartbeatInterval <= 0 || c.Server.HeartbeatTimeout <= 0 {
		return fmt.Errorf("config: heartbeat interval and timeout must be > 0")
	}
	if c.Matching.DeckLimit < 0 {
		return fmt.Errorf("config: DECK_LIMIT must be >= 0")
	}
	return nil
}
