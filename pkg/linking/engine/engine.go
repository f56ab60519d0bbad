// Package engine resolves records to knowledge-base identifiers.
//
// For each record the engine generates candidate queries, searches both
// lookup modes for every candidate, scores each result and keeps the single
// best one. The best result is accepted only when its score reaches the
// threshold.
package engine

import (
	"context"
	"fmt"

	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/linking/candidates"
	"github.com/otherjamesbrown/qidlink/pkg/linking/scoring"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/observability"
)

// Default decision boundaries.
const (
	DefaultThreshold  = 65.0
	DefaultHighTier   = 90.0
	DefaultMediumTier = 60.0
)

// searchModes is the order in which each candidate query is searched.
var searchModes = []linking.Origin{linking.OriginEntitySearch, linking.OriginFullTextSearch}

// Config holds the engine's decision boundaries.
type Config struct {
	// Threshold is the minimum score for a match to be accepted.
	Threshold float64 `yaml:"threshold"`
	// HighTier and MediumTier are the lower bounds of those tiers.
	HighTier   float64 `yaml:"high_tier"`
	MediumTier float64 `yaml:"medium_tier"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		HighTier:   DefaultHighTier,
		MediumTier: DefaultMediumTier,
	}
}

// TierFor bands a score.
func (c Config) TierFor(score float64) linking.Tier {
	switch {
	case score >= c.HighTier:
		return linking.TierHigh
	case score >= c.MediumTier:
		return linking.TierMedium
	default:
		return linking.TierLow
	}
}

// QueryGenerator produces candidate queries for a record.
type QueryGenerator interface {
	Generate(name string, category linking.Category, notes string) ([]linking.Query, error)
}

// Engine resolves single records.
type Engine struct {
	cfg       Config
	searcher  linking.Searcher
	generator QueryGenerator
	scorer    *scoring.Scorer
	logger    logging.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// Option configures the engine.
type Option func(*Engine)

// WithGenerator replaces the default candidate generator.
func WithGenerator(g QueryGenerator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithScorer replaces the default scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records resolution metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over searcher.
func New(searcher linking.Searcher, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		searcher:  searcher,
		generator: candidates.NewGenerator(candidates.Config{}),
		scorer:    scoring.NewScorer(nil),
		logger:    logging.MustGlobal(),
		tracer:    observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logging.F("component", "engine"))
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

type match struct {
	query  linking.Query
	result linking.SearchResult
	score  scoring.Score
}

// Resolve finds the best identifier for rec. A record that already holds a
// High resolution is returned unchanged unless force is set. A nil
// resolution with a nil error means no result reached the threshold.
// Empty names fail with errors.ErrEmptyInput.
func (e *Engine) Resolve(ctx context.Context, rec *linking.Record, force bool) (*linking.Resolution, error) {
	if !force && rec.Resolution != nil && rec.Resolution.Tier == linking.TierHigh {
		return rec.Resolution, nil
	}

	ctx, span := e.tracer.StartResolveSpan(ctx, rec.Row, string(rec.Category))
	defer span.End()
	sh := observability.NewSpanHelper(span)

	queries, err := e.generator.Generate(rec.Name, rec.Category, rec.Notes)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordCandidates(len(queries))

	var best *match
	for _, q := range queries {
		for _, mode := range searchModes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, r := range e.searcher.Search(ctx, q.Text, mode) {
				s := e.scorer.Score(q.Text, rec.Category, r, q.Weight)
				if best == nil || s.Value > best.score.Value {
					best = &match{query: q, result: r, score: s}
				}
			}
		}
	}

	if best == nil || best.score.Value < e.cfg.Threshold {
		if best != nil {
			e.logger.Debug("Best match below threshold",
				logging.F("row", rec.Row),
				logging.F("name", rec.Name),
				logging.F("identifier", best.result.Identifier),
				logging.F("score", best.score.Value),
			)
		}
		return nil, nil
	}

	res := &linking.Resolution{
		Identifier:  best.result.Identifier,
		Label:       best.result.Label,
		Description: best.result.Description,
		Tier:        e.cfg.TierFor(best.score.Value),
		Rationale:   Rationale(best.query, best.result, best.score),
		Score:       best.score.Value,
		Strategy:    best.query.Strategy,
	}
	e.metrics.RecordMatch(res.Score)
	sh.SetResolution(res.Identifier, string(res.Tier), res.Score)
	return res, nil
}

// Rationale renders the human-readable explanation of an accepted match.
func Rationale(q linking.Query, r linking.SearchResult, s scoring.Score) string {
	return fmt.Sprintf("Deep Match via '%s' (%s): %s (%s)", q.Text, q.Strategy, r.Label, s)
}
