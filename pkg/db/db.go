// Package db connects to the PostgreSQL database that holds the triple
// store and keeps its schema current.
package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection configuration. URL, when set, is used
// as-is and the individual fields are ignored.
type Config struct {
	URL            string        `yaml:"url,omitempty"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Database       string        `yaml:"database"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password,omitempty"`
	SSLMode        string        `yaml:"sslmode"`
	MaxConns       int32         `yaml:"max_conns"`
	MinConns       int32         `yaml:"min_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns a Config for a local database.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           5432,
		Database:       "qidlink",
		User:           "qidlink",
		SSLMode:        "disable",
		MaxConns:       4,
		MinConns:       0,
		ConnectTimeout: 10 * time.Second,
	}
}

// ApplyEnv overrides fields from environment variables:
//   - QIDLINK_DB_URL: full connection URL
//   - QIDLINK_DB_HOST, QIDLINK_DB_PORT, QIDLINK_DB_NAME
//   - QIDLINK_DB_USER, QIDLINK_DB_PASSWORD, QIDLINK_DB_SSLMODE
func (c *Config) ApplyEnv() {
	if v := os.Getenv("QIDLINK_DB_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("QIDLINK_DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("QIDLINK_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("QIDLINK_DB_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("QIDLINK_DB_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("QIDLINK_DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("QIDLINK_DB_SSLMODE"); v != "" {
		c.SSLMode = v
	}
}

// ConnectionString returns the connection URL.
func (c *Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

// Validate checks if the config has required fields set.
func (c *Config) Validate() error {
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("max connections (%d) must be >= min connections (%d)", c.MaxConns, c.MinConns)
	}
	if c.URL != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	return nil
}

// Connect creates a connection pool and verifies it with a ping.
// The caller is responsible for calling pool.Close() when done.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Close closes a connection pool if it is not nil.
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
