// Package config provides configuration management for the qidlink command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/qidlink/pkg/checkpoint"
	"github.com/otherjamesbrown/qidlink/pkg/db"
	"github.com/otherjamesbrown/qidlink/pkg/linking/engine"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/lookup"
	"github.com/otherjamesbrown/qidlink/pkg/querycache"
	"github.com/otherjamesbrown/qidlink/pkg/tabular"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultOutputFormat   = OutputFormatText
	DefaultConfigDir      = ".qidlink"
	DefaultConfigFile     = "config.yaml"
	DefaultCacheFile      = "query_cache.json"
	DefaultCheckpointFile = "checkpoint.json"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Checkpoint backends.
const (
	CheckpointFile     = "file"
	CheckpointSQLite   = checkpoint.DriverSQLite
	CheckpointPostgres = checkpoint.DriverPostgres
)

// LookupConfig configures the search service client.
type LookupConfig struct {
	Language         string             `yaml:"language"`
	UserAgent        string             `yaml:"user_agent"`
	EntityEndpoint   string             `yaml:"entity_endpoint"`
	FullTextEndpoint string             `yaml:"fulltext_endpoint"`
	SPARQLEndpoint   string             `yaml:"sparql_endpoint"`
	RequestTimeout   time.Duration      `yaml:"request_timeout"`
	MinDelay         time.Duration      `yaml:"min_delay"`
	MaxDelay         time.Duration      `yaml:"max_delay"`
	Retry            lookup.RetryPolicy `yaml:"retry"`
}

// ResolutionConfig tunes the resolution engine and batch driver.
type ResolutionConfig struct {
	Threshold          float64 `yaml:"threshold"`
	HighTier           float64 `yaml:"high_tier"`
	MediumTier         float64 `yaml:"medium_tier"`
	CheckpointEvery    int     `yaml:"checkpoint_every"`
	ModeAwareCacheKeys bool    `yaml:"mode_aware_cache_keys,omitempty"`
}

// CacheConfig selects where the query cache lives.
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	Path      string        `yaml:"path,omitempty"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	RedisKey  string        `yaml:"redis_key,omitempty"`
	RedisTTL  time.Duration `yaml:"redis_ttl,omitempty"`
}

// CheckpointConfig selects where processed keys are recorded.
type CheckpointConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
	DSN     string `yaml:"dsn,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json,omitempty"`
	// File, when set, also writes JSON logs to a rotating file.
	File string `yaml:"file,omitempty"`
}

// Config holds the qidlink configuration settings.
type Config struct {
	Lookup     LookupConfig     `yaml:"lookup"`
	Resolution ResolutionConfig `yaml:"resolution"`
	Cache      CacheConfig      `yaml:"cache"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Store is the Postgres triple store. Nil disables triples load and db commands.
	Store *db.Config `yaml:"store,omitempty"`

	Columns tabular.Columns `yaml:"columns"`
	Logging LoggingConfig   `yaml:"logging"`

	// MetricsAddr, when set, serves /metrics and /version during runs.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	OutputFormat OutputFormat `yaml:"output_format"`
	Debug        bool         `yaml:"debug,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	lc := lookup.DefaultConfig()
	ec := engine.DefaultConfig()
	return &Config{
		Lookup: LookupConfig{
			Language:         lc.Language,
			UserAgent:        lc.UserAgent,
			EntityEndpoint:   lc.EntityEndpoint,
			FullTextEndpoint: lc.FullTextEndpoint,
			SPARQLEndpoint:   lc.SPARQLEndpoint,
			RequestTimeout:   lc.RequestTimeout,
			MinDelay:         lc.MinDelay,
			MaxDelay:         lc.MaxDelay,
			Retry:            lc.Retry,
		},
		Resolution: ResolutionConfig{
			Threshold:       ec.Threshold,
			HighTier:        ec.HighTier,
			MediumTier:      ec.MediumTier,
			CheckpointEvery: engine.DefaultCheckpointEvery,
		},
		Cache: CacheConfig{
			Backend:  CacheFile,
			RedisKey: querycache.DefaultRedisKey,
		},
		Checkpoint: CheckpointConfig{
			Backend: CheckpointFile,
		},
		Columns:      tabular.DefaultColumns(),
		Logging:      LoggingConfig{Level: string(logging.LevelInfo)},
		OutputFormat: DefaultOutputFormat,
	}
}

// LookupClientConfig converts the lookup section into a client config.
func (c *Config) LookupClientConfig(token string) lookup.Config {
	return lookup.Config{
		EntityEndpoint:     c.Lookup.EntityEndpoint,
		FullTextEndpoint:   c.Lookup.FullTextEndpoint,
		SPARQLEndpoint:     c.Lookup.SPARQLEndpoint,
		Language:           c.Lookup.Language,
		UserAgent:          c.Lookup.UserAgent,
		Token:              token,
		RequestTimeout:     c.Lookup.RequestTimeout,
		MinDelay:           c.Lookup.MinDelay,
		MaxDelay:           c.Lookup.MaxDelay,
		Retry:              c.Lookup.Retry,
		ModeAwareCacheKeys: c.Resolution.ModeAwareCacheKeys,
	}
}

// EngineConfig converts the resolution section into an engine config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Threshold:  c.Resolution.Threshold,
		HighTier:   c.Resolution.HighTier,
		MediumTier: c.Resolution.MediumTier,
	}
}

// CachePath returns the query cache file, defaulting to the config directory.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return ExpandPath(c.Cache.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultCacheFile), nil
}

// CheckpointPath returns the file checkpoint path for namespace. Without an
// explicit path each namespace gets "<namespace>_checkpoint.json" in the
// config directory.
func (c *Config) CheckpointPath(namespace string) (string, error) {
	if c.Checkpoint.Path != "" {
		return ExpandPath(c.Checkpoint.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if namespace == "" {
		return filepath.Join(dir, DefaultCheckpointFile), nil
	}
	return filepath.Join(dir, namespace+"_checkpoint.json"), nil
}

// LoggerConfig builds the logging configuration.
func (c *Config) LoggerConfig() *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.Level(c.Logging.Level)
	if c.Debug {
		lc.Level = logging.LevelDebug
	}
	lc.JSONFormat = c.Logging.JSON
	if c.Logging.File != "" {
		if p, err := ExpandPath(c.Logging.File); err == nil {
			lc.File = logging.DefaultFileConfig(p)
		}
	}
	return lc
}

// ConfigDir returns the configuration directory path.
// Uses $QIDLINK_CONFIG_DIR if set, otherwise ~/.qidlink
func ConfigDir() (string, error) {
	if dir := os.Getenv("QIDLINK_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.qidlink/config.yaml or $QIDLINK_CONFIG_DIR/config.yaml)
// 3. Environment variables (QIDLINK_*)
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile decodes path over cfg, so keys missing from the file keep
// their current values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("QIDLINK_LANGUAGE"); v != "" {
		cfg.Lookup.Language = v
	}
	if v := os.Getenv("QIDLINK_USER_AGENT"); v != "" {
		cfg.Lookup.UserAgent = v
	}
	if v := os.Getenv("QIDLINK_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lookup.RequestTimeout = d
		}
	}
	if v := os.Getenv("QIDLINK_MIN_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lookup.MinDelay = d
		}
	}
	if v := os.Getenv("QIDLINK_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lookup.MaxDelay = d
		}
	}

	if v := os.Getenv("QIDLINK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Resolution.Threshold = f
		}
	}
	if v := os.Getenv("QIDLINK_CHECKPOINT_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resolution.CheckpointEvery = n
		}
	}

	if v := os.Getenv("QIDLINK_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("QIDLINK_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("QIDLINK_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}

	if v := os.Getenv("QIDLINK_CHECKPOINT_BACKEND"); v != "" {
		cfg.Checkpoint.Backend = v
	}
	if v := os.Getenv("QIDLINK_CHECKPOINT_DSN"); v != "" {
		cfg.Checkpoint.DSN = v
	}

	if v := os.Getenv("QIDLINK_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("QIDLINK_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("QIDLINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QIDLINK_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if os.Getenv("QIDLINK_DB_URL") != "" || os.Getenv("QIDLINK_DB_HOST") != "" {
		if cfg.Store == nil {
			cfg.Store = db.DefaultConfig()
		}
	}
	if cfg.Store != nil {
		cfg.Store.ApplyEnv()
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Resolution.Threshold < 0 {
		return fmt.Errorf("resolution.threshold must not be negative")
	}
	if c.Resolution.MediumTier > c.Resolution.HighTier {
		return fmt.Errorf("resolution.medium_tier (%.0f) must not exceed high_tier (%.0f)",
			c.Resolution.MediumTier, c.Resolution.HighTier)
	}
	if c.Lookup.MinDelay < 0 || c.Lookup.MaxDelay < c.Lookup.MinDelay {
		return fmt.Errorf("lookup delays must satisfy 0 <= min_delay <= max_delay")
	}

	switch c.Cache.Backend {
	case CacheFile, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid cache.backend: %q (must be file, memory, or redis)", c.Cache.Backend)
	}

	switch c.Checkpoint.Backend {
	case CheckpointFile:
	case CheckpointSQLite, CheckpointPostgres:
		if c.Checkpoint.DSN == "" {
			return fmt.Errorf("checkpoint.dsn is required for the %s backend", c.Checkpoint.Backend)
		}
	default:
		return fmt.Errorf("invalid checkpoint.backend: %q (must be file, sqlite, or postgres)", c.Checkpoint.Backend)
	}

	if c.Store != nil {
		if err := c.Store.Validate(); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
