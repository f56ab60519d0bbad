// Package cmd provides CLI commands for the qidlink tool.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/qidlink/config"
	"github.com/otherjamesbrown/qidlink/credentials"
	"github.com/otherjamesbrown/qidlink/pkg/checkpoint"
	"github.com/otherjamesbrown/qidlink/pkg/db"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/lookup"
	"github.com/otherjamesbrown/qidlink/pkg/observability"
	"github.com/otherjamesbrown/qidlink/pkg/querycache"
)

// Deps holds the collaborators commands are built from. Tests replace the
// function fields to avoid touching the network, keyring or database.
type Deps struct {
	LoadConfig func() (*config.Config, error)
	Logger     func() logging.Logger
	Metrics    *observability.Metrics
	// Registry receives collectors created while a command runs.
	Registry       prometheus.Registerer
	OpenCache      func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*querycache.Cache, error)
	OpenCheckpoint func(ctx context.Context, cfg *config.Config, namespace string) (checkpoint.Store, error)
	ConnectToDB    func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error)
	Credentials    func() (*credentials.Store, error)
	// Token returns the API token for lookups, or "" for anonymous access.
	Token func() string
}

// DefaultDeps returns the dependencies used by the real binary.
func DefaultDeps() *Deps {
	d := &Deps{
		LoadConfig:     config.LoadConfig,
		Logger:         logging.MustGlobal,
		OpenCache:      openCache,
		OpenCheckpoint: openCheckpoint,
		ConnectToDB:    connectToDatabase,
		Credentials:    credentials.NewStore,
	}
	d.Token = d.storedToken
	return d
}

// storedToken reads the token from the credential store. Any failure means
// the lookups run anonymously.
func (d *Deps) storedToken() string {
	store, err := d.Credentials()
	if err != nil {
		d.Logger().Debug("Credential store unavailable, using anonymous access", logging.Err(err))
		return ""
	}
	token, err := store.Token()
	if err != nil {
		if !errors.Is(err, credentials.ErrNoCredentials) {
			d.Logger().Warn("Ignoring stored token", logging.Err(err))
		}
		return ""
	}
	return token
}

// newLookupClient builds the search client for cfg.
func (d *Deps) newLookupClient(cfg *config.Config, cache *querycache.Cache, logger logging.Logger) *lookup.Client {
	var opts []lookup.Option
	if d.Metrics != nil {
		opts = append(opts, lookup.WithMetrics(d.Metrics))
	}
	token := ""
	if d.Token != nil {
		token = d.Token()
	}
	return lookup.NewClient(cfg.LookupClientConfig(token), cache, logger, opts...)
}

// openCache opens the configured cache backend and loads its entries.
func openCache(ctx context.Context, cfg *config.Config, logger logging.Logger) (*querycache.Cache, error) {
	var store querycache.Store
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		store = querycache.NewMemoryStore(nil)
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		store = querycache.NewRedisStore(client, cfg.Cache.RedisKey, cfg.Cache.RedisTTL)
	default:
		path, err := cfg.CachePath()
		if err != nil {
			return nil, err
		}
		fs, err := querycache.OpenFileStore(path)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	cache := querycache.New(store, logger)
	if err := cache.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return cache, nil
}

// openCheckpoint opens the configured checkpoint backend for namespace.
func openCheckpoint(ctx context.Context, cfg *config.Config, namespace string) (checkpoint.Store, error) {
	switch cfg.Checkpoint.Backend {
	case config.CheckpointSQLite, config.CheckpointPostgres:
		return checkpoint.OpenSQL(ctx, cfg.Checkpoint.Backend, cfg.Checkpoint.DSN, namespace)
	default:
		path, err := cfg.CheckpointPath(namespace)
		if err != nil {
			return nil, err
		}
		return checkpoint.NewFileStore(path), nil
	}
}

// connectToDatabase opens the triple store pool.
func connectToDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("no triple store configured: set store in config.yaml or QIDLINK_DB_URL")
	}
	return db.Connect(ctx, cfg.Store)
}

// formatFor resolves the output format: an explicit flag wins over config.
func formatFor(cfg *config.Config, flag string) config.OutputFormat {
	if flag != "" {
		return config.OutputFormat(flag)
	}
	if cfg == nil {
		return config.OutputFormatText
	}
	return cfg.OutputFormat
}

// WriteStructured encodes v as JSON or YAML. It reports false for text
// output so the caller can print its own layout.
func WriteStructured(w io.Writer, format config.OutputFormat, v any) (bool, error) {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
