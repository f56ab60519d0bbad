package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/config"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/linking/engine"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/tabular"
)

// DefaultPass is the column prefix written by a resolution run.
const DefaultPass = "Third-Query"

type resolveOptions struct {
	output          string
	pass            string
	onlyUnresolved  string
	force           bool
	checkpointEvery int
	format          string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(deps *Deps) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <input.csv>",
		Short: "Link names in a CSV file to knowledge-base identifiers",
		Long: `Resolve every row of a CSV file to a Wikidata identifier.

For each row the name is expanded into candidate queries (cleaned name,
segments, portrait subject, context keywords from notes, entities named in
notes, the original name). Each query is searched by entity search and
then Wikipedia full-text search, every result is scored against the row's
category, and the best match at or above the threshold is written to the
pass columns: <pass>_QID, <pass>_Label, <pass>_Description, <pass>_Logic.

Rows that already have a High-confidence identifier in the pass columns
are kept unless --force is given. Rerunning a pass with --force writes to
"<pass>-N" columns so earlier results survive.

Search results are cached and the cache is flushed every
--checkpoint-every rows, so an interrupted run resumes without repeating
lookups. Interrupting with Ctrl-C still writes the output file.

Examples:
  qidlink resolve entities.csv -o linked.csv
  qidlink resolve linked.csv -o linked.csv --pass Fourth-Query --only-unresolved-from Third-Query
  qidlink resolve linked.csv -o relinked.csv --force --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cmd.OutOrStdout(), deps, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output CSV path (default: overwrite input)")
	cmd.Flags().StringVar(&opts.pass, "pass", DefaultPass, "Column prefix for this pass")
	cmd.Flags().StringVar(&opts.onlyUnresolved, "only-unresolved-from", "", "Skip rows that already have an identifier in this earlier pass")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-resolve rows that already have a High-confidence identifier")
	cmd.Flags().IntVar(&opts.checkpointEvery, "checkpoint-every", 0, "Rows between cache flushes (default from config)")
	cmd.Flags().StringVar(&opts.format, "output", "", "Summary format: text, json, yaml")

	return cmd
}

func runResolve(ctx context.Context, out io.Writer, deps *Deps, input string, opts *resolveOptions) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := deps.Logger().WithContext(ctx).With(logging.F("input", input))

	table, err := tabular.ReadFile(input)
	if err != nil {
		return err
	}

	engineCfg := cfg.EngineConfig()
	pass := tabular.TargetPass(table, opts.pass, opts.force)
	records, err := tabular.LoadRecords(table, cfg.Columns, pass, engineCfg.TierFor)
	if err != nil {
		return err
	}
	logger.Info("Loaded records", logging.F("rows", len(records)), logging.F("pass", string(pass)))

	cache, err := deps.OpenCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening query cache: %w", err)
	}
	defer func() {
		if err := cache.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Closing query cache failed", logging.Err(err))
		}
	}()

	client := deps.newLookupClient(cfg, cache, logger)
	eng := engine.New(client, engineCfg,
		engine.WithLogger(logger),
		engine.WithMetrics(deps.Metrics),
	)
	runner := engine.NewRunner(eng, cache, logger, deps.Metrics)

	runOpts := engine.RunOptions{
		Force:           opts.force,
		CheckpointEvery: opts.checkpointEvery,
	}
	if runOpts.CheckpointEvery <= 0 {
		runOpts.CheckpointEvery = cfg.Resolution.CheckpointEvery
	}
	if opts.onlyUnresolved != "" {
		runOpts.Skip = tabular.ResolvedIn(table, tabular.Pass(opts.onlyUnresolved))
	}

	summary, runErr := runner.Run(ctx, records, runOpts)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	tabular.ApplyResolutions(table, pass, records)
	dest := opts.output
	if dest == "" {
		dest = input
	}
	if err := tabular.WriteFile(dest, table); err != nil {
		return err
	}
	logger.Info("Wrote results", logging.F("output", dest))

	if err := printResolveSummary(out, formatFor(cfg, opts.format), pass, summary); err != nil {
		return err
	}
	return runErr
}

func printResolveSummary(w io.Writer, format config.OutputFormat, pass tabular.Pass, s *engine.Summary) error {
	if ok, err := WriteStructured(w, format, s); ok {
		return err
	}

	fmt.Fprintf(w, "Pass %s: %d rows in %s\n", pass, s.Total, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Resolved:         %d (High %d, Medium %d, Low %d)\n",
		s.Resolved, s.Tiers[linking.TierHigh], s.Tiers[linking.TierMedium], s.Tiers[linking.TierLow])
	fmt.Fprintf(w, "  Unresolved:       %d\n", s.Unresolved)
	fmt.Fprintf(w, "  Already resolved: %d\n", s.AlreadyResolved)
	fmt.Fprintf(w, "  Skipped:          %d\n", s.Skipped)
	if s.Failed > 0 {
		fmt.Fprintf(w, "  \033[31mFailed:           %d\033[0m\n", s.Failed)
	}
	return nil
}
