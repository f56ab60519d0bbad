// Package verify re-checks identifiers already written to a table against
// the knowledge base. Each row's name is graded against the entity's label
// and aliases, its category against the entity's description, and the two
// grades combine into a verdict: Valid, Invalid or Review. Rows judged
// Invalid are treated as unresolved by the next resolution run.
package verify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/linking/scoring"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
)

// DefaultBatchSize is the number of identifiers fetched per request.
const DefaultBatchSize = 50

// NameGrade is how a row's name compares with an entity's names.
type NameGrade string

const (
	NameMatch    NameGrade = "Match"
	NamePartial  NameGrade = "Partial"
	NameMismatch NameGrade = "Mismatch"
)

// Outcome is the verdict for one row.
type Outcome string

const (
	OutcomeValid   Outcome = "Valid"
	OutcomeInvalid Outcome = "Invalid"
	OutcomeReview  Outcome = "Review"
	// OutcomeSkipped marks rows without an identifier to check.
	OutcomeSkipped Outcome = "Skipped"
	// OutcomeUnverified marks rows whose entity could not be fetched.
	OutcomeUnverified Outcome = "Unverified"
)

var identifierPattern = regexp.MustCompile(`^Q[1-9][0-9]*$`)

// Fetcher returns the entities for a batch of identifiers. Unknown
// identifiers are absent from the map.
type Fetcher interface {
	GetEntities(ctx context.Context, ids []string) (map[string]linking.Entity, error)
}

// Item is one row to verify.
type Item struct {
	Row        int
	Name       string
	Category   linking.Category
	Identifier string
}

// Result is the verification of one Item.
type Result struct {
	Row         int             `json:"row"`
	Identifier  string          `json:"identifier"`
	Outcome     Outcome         `json:"outcome"`
	Reason      string          `json:"reason"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Name        NameGrade       `json:"name_grade,omitempty"`
	Category    scoring.Verdict `json:"category_verdict,omitempty"`
}

// Summary counts outcomes of a verification run.
type Summary struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	Review     int `json:"review"`
	Skipped    int `json:"skipped"`
	Unverified int `json:"unverified"`
	Fetched    int `json:"fetched"`
	Batches    int `json:"batches"`
}

// Verifier checks identifiers in batches.
type Verifier struct {
	fetcher   Fetcher
	scorer    *scoring.Scorer
	logger    logging.Logger
	batchSize int
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithBatchSize sets how many identifiers are fetched per request.
func WithBatchSize(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// New creates a Verifier. A nil scorer uses the default category rules.
func New(fetcher Fetcher, scorer *scoring.Scorer, opts ...Option) *Verifier {
	if scorer == nil {
		scorer = scoring.NewScorer(nil)
	}
	v := &Verifier{
		fetcher:   fetcher,
		scorer:    scorer,
		logger:    logging.NewNopLogger(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With(logging.F("component", "verify"))
	return v
}

// Verify fetches every distinct identifier among items and judges each
// row. A failed batch marks its rows Unverified and the run continues.
// Results are returned in input order.
func (v *Verifier) Verify(ctx context.Context, items []Item) ([]Result, *Summary, error) {
	sum := &Summary{}

	var ids []string
	seen := make(map[string]bool)
	for _, it := range items {
		id := strings.TrimSpace(it.Identifier)
		if identifierPattern.MatchString(id) && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	entities := make(map[string]linking.Entity, len(ids))
	failed := make(map[string]error)
	for start := 0; start < len(ids); start += v.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, sum, err
		}
		end := min(start+v.batchSize, len(ids))
		batch := ids[start:end]
		sum.Batches++

		got, err := v.fetcher.GetEntities(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, sum, ctx.Err()
			}
			v.logger.Warn("Entity batch failed",
				logging.F("from", start),
				logging.F("size", len(batch)),
				logging.Err(err),
			)
			for _, id := range batch {
				failed[id] = err
			}
			continue
		}
		for id, e := range got {
			entities[id] = e
		}
		v.logger.Debug("Fetched entity batch",
			logging.F("from", start),
			logging.F("size", len(batch)),
			logging.F("found", len(got)),
		)
	}
	sum.Fetched = len(entities)

	results := make([]Result, len(items))
	for i, it := range items {
		res := v.judge(it, entities, failed)
		results[i] = res
		sum.count(res.Outcome)
	}
	return results, sum, nil
}

func (v *Verifier) judge(it Item, entities map[string]linking.Entity, failed map[string]error) Result {
	id := strings.TrimSpace(it.Identifier)
	res := Result{Row: it.Row, Identifier: id}

	switch {
	case id == "":
		res.Outcome, res.Reason = OutcomeSkipped, "No identifier"
		return res
	case !identifierPattern.MatchString(id):
		res.Outcome, res.Reason = OutcomeSkipped, fmt.Sprintf("Not an item identifier: %q", id)
		return res
	}
	if err, ok := failed[id]; ok {
		le := qerrors.ClassifyError(err, "wbgetentities")
		res.Outcome, res.Reason = OutcomeUnverified, fmt.Sprintf("Lookup failed (%s)", le.Code)
		return res
	}
	entity, ok := entities[id]
	if !ok {
		res.Outcome, res.Reason = OutcomeInvalid, "Identifier not found in the knowledge base"
		return res
	}

	res.Label = entity.Label
	res.Description = entity.Description
	res.Name = GradeName(it.Name, entity.Label, entity.Aliases)
	res.Category = v.scorer.Verdict(it.Category, entity.Description)
	res.Outcome, res.Reason = Decide(res.Name, res.Category, it.Category, entity)
	return res
}

// GradeName compares name with an entity's label and aliases, ignoring
// case and surrounding space. Containment either way against the label is
// a partial match.
func GradeName(name, label string, aliases []string) NameGrade {
	n := normalize(name)
	l := normalize(label)
	if n == "" {
		return NameMismatch
	}
	if n == l {
		return NameMatch
	}
	for _, a := range aliases {
		if n == normalize(a) {
			return NameMatch
		}
	}
	if l != "" && (strings.Contains(n, l) || strings.Contains(l, n)) {
		return NamePartial
	}
	return NameMismatch
}

// Decide combines the name grade and category verdict into an outcome and
// a human-readable reason.
func Decide(name NameGrade, verdict scoring.Verdict, category linking.Category, entity linking.Entity) (Outcome, string) {
	switch {
	case name == NameMatch && verdict == scoring.VerdictMatch:
		return OutcomeValid, fmt.Sprintf("Exact name match + Category match (%s)", entity.Description)
	case name == NameMatch && verdict == scoring.VerdictConflict:
		return OutcomeInvalid, fmt.Sprintf("Name match but Category conflict (Expected %s, got %s)", category, entity.Description)
	case name == NameMatch:
		return OutcomeReview, fmt.Sprintf("Name match but Category unknown/neutral (%s)", entity.Description)
	case name == NamePartial && verdict == scoring.VerdictMatch:
		return OutcomeReview, "Partial name match + Category match"
	case name == NameMismatch:
		return OutcomeInvalid, fmt.Sprintf("Name mismatch (Wiki: %s)", entity.Label)
	default:
		return OutcomeReview, fmt.Sprintf("Complex case: Name %s, Cat %s", name, verdict)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Summary) count(o Outcome) {
	s.Total++
	switch o {
	case OutcomeValid:
		s.Valid++
	case OutcomeInvalid:
		s.Invalid++
	case OutcomeReview:
		s.Review++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeUnverified:
		s.Unverified++
	}
}
