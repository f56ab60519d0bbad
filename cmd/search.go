package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/linking/candidates"
	"github.com/otherjamesbrown/qidlink/pkg/linking/scoring"
)

type searchOptions struct {
	mode       string
	category   string
	candidates bool
	format     string
}

// searchOutput is one query's results, with scores when a category is given.
type searchOutput struct {
	Query    string           `json:"query"`
	Strategy linking.Strategy `json:"strategy,omitempty"`
	Mode     linking.Origin   `json:"mode"`
	Results  []scoredResult   `json:"results"`
}

type scoredResult struct {
	linking.SearchResult `yaml:",inline"`
	Score                *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(deps *Deps) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one lookup against the search services",
		Long: `Run a single search and print the results.

--mode selects entity search (Wikidata) or full-text search (Wikipedia
titles mapped to their Wikidata items). Results go through the same query
cache as resolve runs.

With --category each result is scored the way resolve scores it. With
--candidates the query is first expanded into candidate queries and each
one is searched.

Examples:
  qidlink search "Gian Lorenzo Bernini"
  qidlink search "Palazzo Barberini" --mode fulltext
  qidlink search "Portrait of Cardinal Scipione Borghese" --candidates --category Person`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd.OutOrStdout(), deps, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "entity", "Search mode: entity, fulltext")
	cmd.Flags().StringVar(&opts.category, "category", "", "Score results against this category (Person, Work, Place, ...)")
	cmd.Flags().BoolVar(&opts.candidates, "candidates", false, "Expand the query into candidate queries first")
	cmd.Flags().StringVar(&opts.format, "output", "", "Output format: text, json, yaml")

	return cmd
}

func parseMode(s string) (linking.Origin, error) {
	switch strings.ToLower(s) {
	case "", "entity":
		return linking.OriginEntitySearch, nil
	case "fulltext", "full-text", "wikipedia":
		return linking.OriginFullTextSearch, nil
	default:
		return "", fmt.Errorf("invalid --mode %q (must be entity or fulltext)", s)
	}
}

func runSearch(ctx context.Context, out io.Writer, deps *Deps, query string, opts *searchOptions) error {
	mode, err := parseMode(opts.mode)
	if err != nil {
		return err
	}
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := deps.Logger().WithContext(ctx)

	cache, err := deps.OpenCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening query cache: %w", err)
	}
	defer cache.Close(context.WithoutCancel(ctx))

	queries := []linking.Query{{Text: query, Strategy: linking.StrategyOriginal, Weight: 1}}
	if opts.candidates {
		queries, err = candidates.NewGenerator(candidates.Config{}).Generate(query, linking.ParseCategory(opts.category), "")
		if err != nil {
			return err
		}
	}

	var scorer *scoring.Scorer
	category := linking.ParseCategory(opts.category)
	if opts.category != "" {
		scorer = scoring.NewScorer(nil)
	}

	client := deps.newLookupClient(cfg, cache, logger)
	var outputs []searchOutput
	for _, q := range queries {
		o := searchOutput{Query: q.Text, Mode: mode, Results: []scoredResult{}}
		if opts.candidates {
			o.Strategy = q.Strategy
		}
		for _, r := range client.Search(ctx, q.Text, mode) {
			sr := scoredResult{SearchResult: r}
			if scorer != nil {
				v := scorer.Score(q.Text, category, r, q.Weight).Value
				sr.Score = &v
			}
			o.Results = append(o.Results, sr)
		}
		outputs = append(outputs, o)
	}

	if ok, err := WriteStructured(out, formatFor(cfg, opts.format), outputs); ok {
		return err
	}
	for _, o := range outputs {
		if opts.candidates {
			fmt.Fprintf(out, "%s (%s)\n", o.Query, o.Strategy)
		}
		if len(o.Results) == 0 {
			fmt.Fprintln(out, "  No results.")
			continue
		}
		for _, r := range o.Results {
			line := fmt.Sprintf("  %-10s %-40s %s", r.Identifier, truncate(r.Label, 40), truncate(r.Description, 60))
			if r.Score != nil {
				line += fmt.Sprintf("  [%.1f]", *r.Score)
			}
			fmt.Fprintln(out, strings.TrimRight(line, " "))
		}
	}
	return nil
}
