package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/pkg/checkpoint"
	"github.com/otherjamesbrown/qidlink/pkg/facts"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/tabular"
)

type factsOptions struct {
	output    string
	column    string
	batchSize int
	namespace string
	format    string
}

// NewFactsCommand creates the facts command.
func NewFactsCommand(deps *Deps) *cobra.Command {
	opts := &factsOptions{}

	cmd := &cobra.Command{
		Use:   "facts <qids.csv>",
		Short: "Download labels, descriptions and claims for resolved identifiers",
		Long: `Fetch the statements of every identifier in a CSV column and append
them to a JSON Lines file, one entity document per line.

Identifiers are queried in batches through the SPARQL endpoint. Each
finished batch is recorded in the checkpoint store (a JSON file by default,
or a sqlite/postgres table per config.yaml), so rerunning the command
continues where the last run stopped. A batch that fails is retried on the
next run.

Examples:
  qidlink facts linked.csv -o facts.jsonl
  qidlink facts linked.csv -o facts.jsonl --column Third-Query_QID --batch-size 25`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFacts(cmd.Context(), cmd.OutOrStdout(), deps, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output JSONL path (required; appended to)")
	cmd.Flags().StringVar(&opts.column, "column", facts.DefaultIDColumn, "Column holding the identifiers")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", facts.DefaultBatchSize, "Identifiers per query")
	cmd.Flags().StringVar(&opts.namespace, "checkpoint-namespace", "", "Checkpoint namespace (default: output file name)")
	cmd.Flags().StringVar(&opts.format, "output", "", "Summary format: text, json, yaml")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runFacts(ctx context.Context, out io.Writer, deps *Deps, input string, opts *factsOptions) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := deps.Logger().WithContext(ctx).With(logging.F("input", input))

	table, err := tabular.ReadFile(input)
	if err != nil {
		return err
	}
	if !table.HasColumn(opts.column) {
		return fmt.Errorf("column %q not found in %s", opts.column, input)
	}
	ids, info := facts.IDsFromTable(table, opts.column)

	namespace := opts.namespace
	if namespace == "" {
		namespace = strings.TrimSuffix(filepath.Base(opts.output), filepath.Ext(opts.output))
	}
	store, err := deps.OpenCheckpoint(ctx, cfg, namespace)
	if err != nil {
		return fmt.Errorf("opening checkpoint: %w", err)
	}
	defer store.Close()

	tracker, err := checkpoint.NewTracker(ctx, store)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(opts.output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer f.Close()

	client := deps.newLookupClient(cfg, nil, logger)
	fetcher := facts.NewFetcher(client, tracker,
		facts.WithBatchSize(opts.batchSize),
		facts.WithLogger(logger),
	)

	summary, runErr := fetcher.Run(ctx, ids, info, f)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing output: %w", err)
	}

	if ok, err := WriteStructured(out, formatFor(cfg, opts.format), summary); ok {
		if err != nil {
			return err
		}
		return runErr
	}
	fmt.Fprintf(out, "Identifiers: %d (%d already done)\n", summary.Total, summary.AlreadyDone)
	fmt.Fprintf(out, "Batches:     %d (%d failed)\n", summary.Batches, summary.FailedBatches)
	fmt.Fprintf(out, "Entities:    %d written to %s\n", summary.Entities, opts.output)
	if summary.FailedBatches > 0 {
		fmt.Fprintln(out, "Rerun the same command to retry the failed batches.")
	}
	return runErr
}
