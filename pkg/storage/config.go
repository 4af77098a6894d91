package storage

import (
	"fmt"
	"time"
)

// Supported durable store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config for the durable store and the cache store
type Config struct {
	// Durable store
	Driver      string // "postgres" or "sqlite3"
	DatabaseURL string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	AutoMigrate bool

	// Redis cache
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
	CachePrefix     string

	// In-process L1 cache for user snapshots; disabled when L1CacheSize is 0
	L1CacheSize int
	L1CacheTTL  time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          DriverPostgres,
		DatabaseURL:     "postgres://localhost:5432/couchuser?sslmode=disable",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		AutoMigrate:     true,
		RedisURL:        "redis://localhost:6379/0",
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		CachePrefix:     "couchuser:",
		L1CacheSize:     0,
		L1CacheTTL:      30 * time.Second,
	}
}

// Validate checks the storage configuration
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q (want %s or %s)", c.Driver, DriverPostgres, DriverSQLite)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max connections must be at least 1")
	}
	if c.L1CacheSize < 0 {
		return fmt.Errorf("L1 cache size must not be negative")
	}
	if c.L1CacheSize > 0 && c.L1CacheTTL <= 0 {
		return fmt.Errorf("L1 cache TTL must be positive when the L1 cache is enabled")
	}
	return nil
}
