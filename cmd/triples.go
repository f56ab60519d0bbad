package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/pkg/db"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/observability"
	"github.com/otherjamesbrown/qidlink/pkg/tabular"
	"github.com/otherjamesbrown/qidlink/pkg/triples"
	"github.com/otherjamesbrown/qidlink/pkg/triples/extract"
	"github.com/otherjamesbrown/qidlink/pkg/triples/refine"
	"github.com/otherjamesbrown/qidlink/pkg/triplestore"
)

// Extraction input formats.
const (
	FormatTitle = "title"
	FormatIndex = "index"
)

// loadBatchSize is how many triples go into one SaveBatch call.
const loadBatchSize = 1000

// NewTriplesCommand creates the triples command group.
func NewTriplesCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triples",
		Short: "Extract, refine and store relation triples",
		Long: `Turn catalogue rows into (subject, predicate, object) triples.

Typical flow:
  qidlink triples extract catalogue.csv -o raw.csv
  qidlink triples refine raw.csv -o refined.csv
  qidlink triples dedup refined.csv index_refined.csv -o all.csv
  qidlink triples load all.csv

Triple CSVs have the columns Index, Subject, Subject QID, Predicate,
Object, Object QID, Source_Row. An empty identifier is written as "/".`,
	}

	cmd.AddCommand(newTriplesExtractCommand(deps))
	cmd.AddCommand(newTriplesRefineCommand(deps))
	cmd.AddCommand(newTriplesDedupCommand(deps))
	cmd.AddCommand(newTriplesLoadCommand(deps))
	return cmd
}

type extractOptions struct {
	output            string
	format            string
	refine            bool
	displayPredicates bool
}

func newTriplesExtractCommand(deps *Deps) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <input.csv>",
		Short: "Extract triples from catalogue or index rows",
		Long: `Extract triples from a CSV of catalogue entries.

--format title reads Title_Description, Title_QID, Artist, Artist_QID,
Location and Location_QID. --format index reads Index_Main Entry,
Index_Sub-entry, Index_Detail and Index_Location. Without --format the
layout is detected from the header.

Examples:
  qidlink triples extract catalogue.csv -o raw.csv
  qidlink triples extract index.csv -o index_raw.csv --format index --refine`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriplesExtract(cmd.Context(), cmd.OutOrStdout(), deps, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output CSV path (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Input layout: title, index (default: detect)")
	cmd.Flags().BoolVar(&opts.refine, "refine", false, "Refine the triples before writing")
	cmd.Flags().BoolVar(&opts.displayPredicates, "display-predicates", false, "Write reader-facing predicate names")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func detectFormat(t *tabular.Table) string {
	if t.HasColumn(tabular.ColMainEntry) && !t.HasColumn(tabular.ColTitle) {
		return FormatIndex
	}
	return FormatTitle
}

// extractTable runs the extractor matching format over every row of t.
func extractTable(t *tabular.Table, format string) ([]triples.Triple, error) {
	var out []triples.Triple
	switch format {
	case FormatIndex:
		rows, err := tabular.IndexRows(t)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, extract.ExtractIndex(r)...)
		}
	case FormatTitle:
		rows, err := tabular.TitleRows(t)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, extract.Extract(r)...)
		}
	default:
		return nil, fmt.Errorf("invalid --format %q (must be title or index)", format)
	}
	return out, nil
}

func runTriplesExtract(ctx context.Context, out io.Writer, deps *Deps, input string, opts *extractOptions) error {
	logger := deps.Logger().WithContext(ctx)

	table, err := tabular.ReadFile(input)
	if err != nil {
		return err
	}
	format := opts.format
	if format == "" {
		format = detectFormat(table)
	}

	_, span := observability.NewTracer().StartExtractSpan(ctx, format)
	defer span.End()

	ts, err := extractTable(table, format)
	if err != nil {
		return err
	}
	deps.Metrics.RecordTriples("extract", len(ts))
	extracted := len(ts)

	if opts.refine {
		ts = refine.RefineAll(ts)
		deps.Metrics.RecordTriples("refine", len(ts))
	}
	ts = triples.Dedup(ts)

	if err := tabular.WriteFile(opts.output, tabular.TriplesTable(ts, opts.displayPredicates)); err != nil {
		return err
	}
	observability.NewSpanHelper(span).SetSuccess()
	logger.Info("Extracted triples",
		logging.F("format", format),
		logging.F("rows", table.Len()),
		logging.F("extracted", extracted),
		logging.F("written", len(ts)),
	)
	fmt.Fprintf(out, "Extracted %d triples from %d rows (%s format), wrote %d to %s\n",
		extracted, table.Len(), format, len(ts), opts.output)
	return nil
}

type refineOptions struct {
	output            string
	displayPredicates bool
}

func newTriplesRefineCommand(deps *Deps) *cobra.Command {
	opts := &refineOptions{}

	cmd := &cobra.Command{
		Use:   "refine <input.csv>",
		Short: "Split compound subjects and objects into atomic triples",
		Long: `Refine a triple CSV.

Compound subjects ("Bernini, Borromini and Cortona") and compound objects
("medals and gems", "see under Barberini") are split into one triple per
part. Each refined triple keeps the source row of the triple it came from.

Examples:
  qidlink triples refine raw.csv -o refined.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriplesRefine(cmd.Context(), cmd.OutOrStdout(), deps, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output CSV path (required)")
	cmd.Flags().BoolVar(&opts.displayPredicates, "display-predicates", false, "Write reader-facing predicate names")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runTriplesRefine(ctx context.Context, out io.Writer, deps *Deps, input string, opts *refineOptions) error {
	ts, err := readTriples(input)
	if err != nil {
		return err
	}

	refined := triples.Dedup(refine.RefineAll(ts))
	deps.Metrics.RecordTriples("refine", len(refined))

	if err := tabular.WriteFile(opts.output, tabular.TriplesTable(refined, opts.displayPredicates)); err != nil {
		return err
	}
	deps.Logger().WithContext(ctx).Info("Refined triples",
		logging.F("input", len(ts)),
		logging.F("output", len(refined)),
	)
	fmt.Fprintf(out, "Refined %d triples into %d, wrote %s\n", len(ts), len(refined), opts.output)
	return nil
}

type dedupOptions struct {
	output            string
	semantic          bool
	displayPredicates bool
}

func newTriplesDedupCommand(deps *Deps) *cobra.Command {
	opts := &dedupOptions{}

	cmd := &cobra.Command{
		Use:   "dedup <input.csv>...",
		Short: "Merge triple files and drop duplicates",
		Long: `Concatenate one or more triple CSVs in order and remove duplicates.

By default a duplicate has the same subject, predicate, object and source
row. With --semantic the source row is ignored, so the same fact stated on
two rows is kept once. The first occurrence always wins.

Examples:
  qidlink triples dedup refined.csv -o unique.csv
  qidlink triples dedup title.csv index.csv -o all.csv --semantic`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriplesDedup(cmd.Context(), cmd.OutOrStdout(), deps, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output CSV path (required)")
	cmd.Flags().BoolVar(&opts.semantic, "semantic", false, "Ignore source row when comparing triples")
	cmd.Flags().BoolVar(&opts.displayPredicates, "display-predicates", false, "Write reader-facing predicate names")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runTriplesDedup(ctx context.Context, out io.Writer, deps *Deps, inputs []string, opts *dedupOptions) error {
	var (
		sets  [][]triples.Triple
		total int
	)
	for _, in := range inputs {
		ts, err := readTriples(in)
		if err != nil {
			return err
		}
		total += len(ts)
		sets = append(sets, ts)
	}

	merged := triples.Merge(sets...)
	if opts.semantic {
		merged = triples.SemanticDedup(merged)
	}
	deps.Metrics.RecordTriples("dedup", len(merged))

	if err := tabular.WriteFile(opts.output, tabular.TriplesTable(merged, opts.displayPredicates)); err != nil {
		return err
	}
	deps.Logger().WithContext(ctx).Info("Deduplicated triples",
		logging.F("files", len(inputs)),
		logging.F("input", total),
		logging.F("output", len(merged)),
		logging.F("semantic", opts.semantic),
	)
	fmt.Fprintf(out, "Kept %d of %d triples from %d file(s), wrote %s\n", len(merged), total, len(inputs), opts.output)
	return nil
}

type loadOptions struct {
	source  string
	migrate bool
}

func newTriplesLoadCommand(deps *Deps) *cobra.Command {
	opts := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "load <input.csv>",
		Short: "Write triples to the Postgres triple store",
		Long: `Load a triple CSV into the triples table.

Triples already stored for the same subject, predicate, object and source
row are skipped, so loading a file twice is harmless. Each row is tagged
with --source (default: the input file name).

Requires a store section in config.yaml or QIDLINK_DB_URL.

Examples:
  qidlink triples load all.csv
  qidlink triples load all.csv --source catalogue-2024 --migrate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriplesLoad(cmd.Context(), cmd.OutOrStdout(), deps, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Source tag stored with each triple")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "Apply pending migrations first")
	return cmd
}

func runTriplesLoad(ctx context.Context, out io.Writer, deps *Deps, input string, opts *loadOptions) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	ts, err := readTriples(input)
	if err != nil {
		return err
	}
	source := opts.source
	if source == "" {
		source = filepath.Base(input)
	}

	logger := deps.Logger().WithContext(ctx)

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if deps.Registry != nil {
		if _, err := db.RegisterPoolStats(deps.Registry, pool); err != nil {
			logger.Debug("Pool stats not registered", logging.Err(err))
		}
	}

	if opts.migrate {
		if _, err := db.RunMigrations(ctx, pool, db.Migrations()); err != nil {
			return err
		}
	}

	store := triplestore.New(pool)
	var inserted int64
	for start := 0; start < len(ts); start += loadBatchSize {
		end := min(start+loadBatchSize, len(ts))
		n, err := store.SaveBatch(ctx, source, ts[start:end])
		if err != nil {
			return fmt.Errorf("loading triples %d-%d: %w", start+1, end, err)
		}
		inserted += n
	}

	logger.Info("Loaded triples",
		logging.F("source", source),
		logging.F("read", len(ts)),
		logging.F("inserted", inserted),
	)
	fmt.Fprintf(out, "Loaded %d new triples (%d already stored) from %s\n",
		inserted, int64(len(ts))-inserted, input)
	return nil
}

func readTriples(path string) ([]triples.Triple, error) {
	t, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return tabular.ParseTriples(t)
}
