package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/qidlink/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage qidlink configuration",
		Long: `View and modify ~/.qidlink/config.yaml.

Settings are resolved as defaults, then config.yaml, then QIDLINK_*
environment variables, then command-line flags.`,
	}

	cmd.AddCommand(newConfigShowCommand(deps))
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigSetCommand())
	return cmd
}

func newConfigShowCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			data, err := yaml.Marshal(redacted(cfg))
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// redacted returns a copy of cfg safe to print.
func redacted(cfg *config.Config) *config.Config {
	out := *cfg
	if cfg.Store != nil {
		store := *cfg.Store
		if store.Password != "" {
			store.Password = "xxxxx"
		}
		if u, err := url.Parse(store.URL); err == nil && store.URL != "" {
			store.URL = u.Redacted()
		}
		out.Store = &store
	}
	if u, err := url.Parse(cfg.Checkpoint.DSN); err == nil && u.User != nil {
		out.Checkpoint.DSN = u.Redacted()
	}
	return &out
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create config.yaml with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			configPath, err := config.ConfigPath()
			if err != nil {
				return fmt.Errorf("getting config path: %w", err)
			}
			if _, err := os.Stat(configPath); err == nil {
				fmt.Fprintf(w, "Configuration file already exists: %s\n", configPath)
				fmt.Fprintln(w, "Use 'qidlink config show' to view current settings.")
				return nil
			}
			if err := config.SaveConfig(config.DefaultConfig()); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}
			fmt.Fprintf(w, "Created configuration file: %s\n", configPath)
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in config.yaml.

Available keys:
  lookup.language        Search language code (en, it, ...)
  lookup.user_agent      User-Agent sent to the search services
  lookup.min_delay       Minimum pause between requests (e.g. 1.5s)
  lookup.max_delay       Maximum pause between requests (e.g. 3s)
  resolution.threshold   Minimum score to accept a match (0-100)
  cache.backend          file, memory or redis
  cache.redis_addr       Redis host:port
  checkpoint.backend     file, sqlite or postgres
  checkpoint.dsn         Database DSN for sql checkpoints
  metrics_addr           host:port for /metrics during runs
  output_format          text, json or yaml
  logging.level          debug, info, warn or error
  debug                  true or false

Examples:
  qidlink config set lookup.language it
  qidlink config set resolution.threshold 70
  qidlink config set cache.backend redis`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				cfg = config.DefaultConfig()
			}
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	parseDuration := func() (time.Duration, error) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value: %w", key, err)
		}
		return d, nil
	}

	switch key {
	case "lookup.language":
		cfg.Lookup.Language = value
	case "lookup.user_agent":
		cfg.Lookup.UserAgent = value
	case "lookup.min_delay":
		d, err := parseDuration()
		if err != nil {
			return err
		}
		cfg.Lookup.MinDelay = d
	case "lookup.max_delay":
		d, err := parseDuration()
		if err != nil {
			return err
		}
		cfg.Lookup.MaxDelay = d
	case "resolution.threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid threshold value: %w", err)
		}
		cfg.Resolution.Threshold = f
	case "cache.backend":
		cfg.Cache.Backend = value
	case "cache.redis_addr":
		cfg.Cache.RedisAddr = value
	case "checkpoint.backend":
		cfg.Checkpoint.Backend = value
	case "checkpoint.dsn":
		cfg.Checkpoint.DSN = value
	case "metrics_addr":
		cfg.MetricsAddr = value
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		cfg.OutputFormat = format
	case "logging.level":
		switch value {
		case "debug", "info", "warn", "error":
			cfg.Logging.Level = value
		default:
			return fmt.Errorf("invalid log level: %s", value)
		}
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
		}
		cfg.Debug = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
