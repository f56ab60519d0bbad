// Package main provides the qidlink CLI entry point.
// qidlink links catalogue records to Wikidata entities and turns the
// linked tables into subject-predicate-object triples.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/cmd"
	"github.com/otherjamesbrown/qidlink/config"
	"github.com/otherjamesbrown/qidlink/pkg/buildinfo"
	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/observability"
)

const binaryName = "qidlink"

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configDir    string
	outputFormat string
	metricsAddr  string
	debug        bool
	logJSON      bool
}

// apply overrides cfg with any flags that were set.
func (f *rootFlags) apply(cfg *config.Config) {
	if f.outputFormat != "" {
		cfg.OutputFormat = config.OutputFormat(f.outputFormat)
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	if f.debug {
		cfg.Debug = true
	}
	if f.logJSON {
		cfg.Logging.JSON = true
	}
}

// app carries state set up by the root command for the running command.
type app struct {
	flags    rootFlags
	deps     *cmd.Deps
	registry *prometheus.Registry
	server   *http.Server
}

// skipsInit lists commands that run without loading configuration.
var skipsInit = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
	"init":       true,
	"path":       true,
}

func newApp(deps *cmd.Deps) *app {
	a := &app{deps: deps, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = observability.NewMetrics(a.registry)
	deps.Registry = a.registry

	load := deps.LoadConfig
	var loaded *config.Config
	deps.LoadConfig = func() (*config.Config, error) {
		if loaded != nil {
			return loaded, nil
		}
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		a.flags.apply(cfg)
		if !cfg.OutputFormat.IsValid() {
			return nil, fmt.Errorf("invalid --output %q (must be text, json, or yaml)", cfg.OutputFormat)
		}
		loaded = cfg
		return cfg, nil
	}
	return a
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   binaryName,
		Short: "Link catalogue records to Wikidata entities",
		Long: `qidlink resolves noisy catalogue records (artworks, people, places) to
Wikidata identifiers, then extracts and refines subject-predicate-object
triples from the linked tables.

COMMON WORKFLOWS:
  Resolve a table:   qidlink resolve records.csv --pass Third-Query
  Try a query:       qidlink search "Gian Lorenzo Bernini" --category Person
  Build triples:     qidlink triples extract linked.csv -o triples.csv --refine
  Store triples:     qidlink triples load triples.csv --migrate
  Fetch entity data: qidlink facts triples.csv -o facts.jsonl

Commands accept --output json|yaml for structured results. Lookups are
cached in ~/.qidlink, so an interrupted run can simply be started again.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.preRun,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default is ~/.qidlink)")
	pf.StringVar(&a.flags.outputFormat, "output-format", "", "default output format: text, json, yaml")
	pf.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "serve /metrics and /version on this address while running")
	pf.BoolVar(&a.flags.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&a.flags.logJSON, "log-json", false, "write logs as JSON")

	root.AddGroup(
		&cobra.Group{ID: "linking", Title: "Entity Linking:"},
		&cobra.Group{ID: "triples", Title: "Triples:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	add := func(group string, c *cobra.Command) {
		c.GroupID = group
		root.AddCommand(c)
	}

	add("linking", cmd.NewResolveCommand(a.deps))
	add("linking", cmd.NewVerifyCommand(a.deps))
	add("linking", cmd.NewSearchCommand(a.deps))
	add("triples", cmd.NewTriplesCommand(a.deps))
	add("triples", cmd.NewFactsCommand(a.deps))
	add("ops", cmd.NewCacheCommand(a.deps))
	add("ops", cmd.NewDbCommand(a.deps))
	add("setup", cmd.NewConfigCommand(a.deps))
	add("setup", cmd.NewAuthCommand(a.deps))
	add("setup", newVersionCommand(a))

	root.SetHelpCommandGroupID("setup")
	root.SetCompletionCommandGroupID("setup")
	return root
}

func (a *app) preRun(c *cobra.Command, args []string) error {
	if a.flags.configDir != "" {
		if err := os.Setenv("QIDLINK_CONFIG_DIR", a.flags.configDir); err != nil {
			return err
		}
	}
	if skipsInit[c.Name()] {
		return nil
	}

	cfg, err := a.deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.SetGlobal(logging.NewLogger(cfg.LoggerConfig()))

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	c.SetContext(ctx)

	logging.MustGlobal().WithContext(ctx).Debug("Command started",
		logging.F("command", c.CommandPath()),
		logging.F("args", args),
	)

	if cfg.MetricsAddr != "" {
		if err := a.serveMetrics(cfg.MetricsAddr); err != nil {
			return err
		}
	}
	return nil
}

// serveMetrics starts the metrics listener. It runs until shutdown.
func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("starting metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.Handle("/version", buildinfo.Handler(binaryName))

	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.MustGlobal().Warn("Metrics listener stopped", logging.Err(err))
		}
	}()
	logging.MustGlobal().Info("Serving metrics", logging.F("addr", ln.Addr().String()))
	return nil
}

func (a *app) shutdown() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.server.Shutdown(ctx)
}

func newVersionCommand(a *app) *cobra.Command {
	var format string
	c := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash, and build time of qidlink.

Examples:
  qidlink version
  qidlink version --output json`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			if format == "" {
				format = a.flags.outputFormat
			}
			return printVersion(c.OutOrStdout(), config.OutputFormat(format))
		},
	}
	c.Flags().StringVar(&format, "output", "", "Output format: text, json, yaml")
	return c
}

func printVersion(w io.Writer, format config.OutputFormat) error {
	info := buildinfo.Get(binaryName)
	if ok, err := cmd.WriteStructured(w, format, info); ok {
		return err
	}
	fmt.Fprintf(w, "%s version %s\n", binaryName, info.Version)
	fmt.Fprintf(w, "  commit: %s\n", info.Commit)
	fmt.Fprintf(w, "  built:  %s\n", info.BuildTime)
	fmt.Fprintf(w, "  go:     %s\n", info.GoVersion)
	if info.Modified {
		fmt.Fprintln(w, "  (built from a modified tree)")
	}
	return nil
}

// exitCode maps a command error to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

// printError writes err and, for lookup failures, the suggested action.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var le *qerrors.LookupError
	if errors.As(err, &le) {
		fmt.Fprintf(w, "Hint: %s\n", qerrors.GetSuggestedAction(le.Code))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cmd.DefaultDeps())
	err := a.rootCommand().ExecuteContext(ctx)
	a.shutdown()

	if err != nil {
		printError(os.Stderr, err)
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted. Progress up to the last checkpoint is saved; rerun to continue.")
		}
	}
	stop()
	os.Exit(exitCode(err))
}
