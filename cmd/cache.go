package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/config"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/querycache"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the query cache",
		Long: `Inspect and manage the search query cache.

Every lookup result is cached by query text, including empty results, so
reruns never repeat a search. The backend is set by cache.backend in
config.yaml: file (default, ~/.qidlink/query_cache.json), memory or redis.

Examples:
  qidlink cache stats
  qidlink cache get "Gian Lorenzo Bernini"
  qidlink cache delete "Bernini"
  qidlink cache clear --yes`,
	}

	cmd.AddCommand(newCacheStatsCommand(deps))
	cmd.AddCommand(newCacheGetCommand(deps))
	cmd.AddCommand(newCacheDeleteCommand(deps))
	cmd.AddCommand(newCacheClearCommand(deps))
	return cmd
}

// cacheStatsOutput is the stats report.
type cacheStatsOutput struct {
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Entries  int    `json:"entries"`
	Empty    int    `json:"empty_results"`
}

// withCache opens the configured cache, runs fn and closes it, saving any changes.
func withCache(ctx context.Context, deps *Deps, fn func(*config.Config, *querycache.Cache) error) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cache, err := deps.OpenCache(ctx, cfg, deps.Logger().WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opening query cache: %w", err)
	}
	fnErr := fn(cfg, cache)
	closeErr := cache.Close(context.WithoutCancel(ctx))
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

func cacheLocation(cfg *config.Config) string {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		return cfg.Cache.RedisAddr + "/" + cfg.Cache.RedisKey
	case config.CacheMemory:
		return "(in-process)"
	default:
		p, err := cfg.CachePath()
		if err != nil {
			return "?"
		}
		return p
	}
}

func newCacheStatsCommand(deps *Deps) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd.Context(), deps, func(cfg *config.Config, cache *querycache.Cache) error {
				out := cacheStatsOutput{
					Backend:  cfg.Cache.Backend,
					Location: cacheLocation(cfg),
					Entries:  cache.Stats().Entries,
					Empty:    cache.EmptyCount(),
				}
				w := cmd.OutOrStdout()
				if ok, err := WriteStructured(w, formatFor(cfg, format), out); ok {
					return err
				}
				fmt.Fprintf(w, "Backend:  %s\n", out.Backend)
				fmt.Fprintf(w, "Location: %s\n", out.Location)
				fmt.Fprintf(w, "Entries:  %d (%d with no results)\n", out.Entries, out.Empty)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "output", "", "Output format: text, json, yaml")
	return cmd
}

func newCacheGetCommand(deps *Deps) *cobra.Command {
	var mode, format string
	cmd := &cobra.Command{
		Use:   "get <query>",
		Short: "Show the cached results for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := parseMode(mode)
			if err != nil {
				return err
			}
			return withCache(cmd.Context(), deps, func(cfg *config.Config, cache *querycache.Cache) error {
				key := deps.newLookupClient(cfg, cache, deps.Logger()).CacheKey(args[0], origin)
				results, ok := cache.Get(key)
				w := cmd.OutOrStdout()
				if !ok {
					return fmt.Errorf("query %q is not cached", args[0])
				}
				if results == nil {
					results = []linking.SearchResult{}
				}
				if ok, err := WriteStructured(w, formatFor(cfg, format), results); ok {
					return err
				}
				return printResults(w, results)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "entity", "Search mode the entry was stored under: entity, fulltext")
	cmd.Flags().StringVar(&format, "output", "", "Output format: text, json, yaml")
	return cmd
}

func printResults(w io.Writer, results []linking.SearchResult) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "Cached with no results.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(w, "%-10s %-40s %-16s %s\n", r.Identifier, truncate(r.Label, 40), r.Origin, truncate(r.Description, 60))
	}
	return nil
}

func newCacheDeleteCommand(deps *Deps) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "delete <query>...",
		Short: "Remove queries from the cache so they are searched again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := parseMode(mode)
			if err != nil {
				return err
			}
			return withCache(cmd.Context(), deps, func(cfg *config.Config, cache *querycache.Cache) error {
				client := deps.newLookupClient(cfg, cache, deps.Logger())
				removed := 0
				for _, q := range args {
					if cache.Delete(client.CacheKey(q, origin)) {
						removed++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d queries.\n", removed, len(args))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "entity", "Search mode the entry was stored under: entity, fulltext")
	return cmd
}

func newCacheClearCommand(deps *Deps) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd.Context(), deps, func(cfg *config.Config, cache *querycache.Cache) error {
				w := cmd.OutOrStdout()
				n := cache.Stats().Entries
				if n == 0 {
					fmt.Fprintln(w, "Cache is already empty.")
					return nil
				}
				if !yes {
					fmt.Fprintf(w, "Remove %d cached queries from %s? (y/N): ", n, cacheLocation(cfg))
					answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					if strings.ToLower(strings.TrimSpace(answer)) != "y" {
						fmt.Fprintln(w, "Cancelled.")
						return nil
					}
				}
				cache.Clear()
				fmt.Fprintf(w, "Removed %d cached queries.\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
