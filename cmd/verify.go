package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/config"
	"github.com/otherjamesbrown/qidlink/pkg/linking/verify"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/lookup"
	"github.com/otherjamesbrown/qidlink/pkg/tabular"
)

type verifyOptions struct {
	output    string
	pass      string
	batchSize int
	format    string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(deps *Deps) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify <input.csv>",
		Short: "Check identifiers already written by a pass",
		Long: `Fetch every identifier in a pass's <pass>_QID column and check it
against the row's name and category.

The name is compared with the entity's label and aliases (Match, Partial,
Mismatch) and the category with its description (Match, Conflict,
Neutral). The combination gives a verdict written to the
<pass>_Verify_Result column, with the reason, the checked identifier and
the entity's label and description alongside:

  Valid    exact name match and category match
  Invalid  name mismatch, category conflict, or unknown identifier
  Review   anything in between

Rows judged Invalid count as unresolved in that pass: a later
"qidlink resolve" resolves them again, and --only-unresolved-from no
longer skips them.

Examples:
  qidlink verify linked.csv
  qidlink verify linked.csv -o checked.csv --pass Fourth-Query --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), deps, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output CSV path (default: overwrite input)")
	cmd.Flags().StringVar(&opts.pass, "pass", DefaultPass, "Column prefix of the pass to verify")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", verify.DefaultBatchSize, fmt.Sprintf("Identifiers per request (max %d)", lookup.MaxEntityBatch))
	cmd.Flags().StringVar(&opts.format, "output", "", "Summary format: text, json, yaml")

	return cmd
}

func runVerify(ctx context.Context, out io.Writer, deps *Deps, input string, opts *verifyOptions) error {
	if opts.batchSize < 1 || opts.batchSize > lookup.MaxEntityBatch {
		return fmt.Errorf("--batch-size must be between 1 and %d", lookup.MaxEntityBatch)
	}
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := deps.Logger().WithContext(ctx).With(logging.F("input", input))

	table, err := tabular.ReadFile(input)
	if err != nil {
		return err
	}
	pass := tabular.Pass(opts.pass)
	if !table.HasColumn(pass.QID()) {
		return fmt.Errorf("%s has no %s column; run resolve with --pass %s first", input, pass.QID(), opts.pass)
	}

	client := deps.newLookupClient(cfg, nil, logger)
	verifier := verify.New(client, nil,
		verify.WithBatchSize(opts.batchSize),
		verify.WithLogger(logger),
	)

	items := tabular.VerifyItems(table, cfg.Columns, pass)
	logger.Info("Verifying identifiers", logging.F("rows", len(items)), logging.F("pass", string(pass)))

	results, summary, err := verifier.Verify(ctx, items)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Verification interrupted, input left unchanged")
		}
		return err
	}

	tabular.ApplyVerification(table, pass, results)
	dest := opts.output
	if dest == "" {
		dest = input
	}
	if err := tabular.WriteFile(dest, table); err != nil {
		return err
	}
	logger.Info("Wrote verification", logging.F("output", dest))

	return printVerifySummary(out, formatFor(cfg, opts.format), pass, summary)
}

func printVerifySummary(w io.Writer, format config.OutputFormat, pass tabular.Pass, s *verify.Summary) error {
	if ok, err := WriteStructured(w, format, s); ok {
		return err
	}

	fmt.Fprintf(w, "Pass %s: %d rows, %d entities in %d batches\n", pass, s.Total, s.Fetched, s.Batches)
	fmt.Fprintf(w, "  Valid:      %d\n", s.Valid)
	fmt.Fprintf(w, "  Review:     %d\n", s.Review)
	fmt.Fprintf(w, "  Invalid:    %d\n", s.Invalid)
	fmt.Fprintf(w, "  Skipped:    %d\n", s.Skipped)
	if s.Unverified > 0 {
		fmt.Fprintf(w, "  \033[31mUnverified: %d\033[0m\n", s.Unverified)
	}
	return nil
}
