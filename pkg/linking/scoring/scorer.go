// Package scoring rates how well a search result matches a candidate query.
package scoring

import (
	"fmt"
	"strings"

	"github.com/otherjamesbrown/qidlink/pkg/linking"
)

// Score adjustments.
const (
	ConflictPenalty = -50.0
	MatchBonus      = 20.0
	ExactBonus      = 10.0
)

// Verdict is the outcome of the category consistency check.
type Verdict string

const (
	VerdictMatch    Verdict = "Match"
	VerdictConflict Verdict = "Conflict"
	VerdictNeutral  Verdict = "Neutral"
)

// Score is a computed match score with the parts that produced it.
type Score struct {
	Value      float64
	Similarity float64
	Verdict    Verdict
	Exact      bool
}

// String renders the score parts for a rationale string.
func (s Score) String() string {
	return fmt.Sprintf("Score: %.1f, Sim: %.2f, Category: %s", s.Value, s.Similarity, s.Verdict)
}

// Scorer computes match scores against a category rule table.
type Scorer struct {
	rules map[linking.Category]CategoryRule
}

// NewScorer returns a Scorer using rules, or DefaultCategoryRules when nil.
func NewScorer(rules map[linking.Category]CategoryRule) *Scorer {
	if rules == nil {
		rules = DefaultCategoryRules
	}
	return &Scorer{rules: rules}
}

// Score rates result against the query text that found it. The raw score
// is similarity x 100 plus the category adjustment and exact-match bonus,
// all multiplied by the query's strategy weight. The value is not clamped.
func (s *Scorer) Score(query string, category linking.Category, result linking.SearchResult, weight float64) Score {
	sim := Similarity(query, result.Label)
	verdict := s.Verdict(category, result.Description)
	exact := strings.EqualFold(strings.TrimSpace(query), strings.TrimSpace(result.Label))

	value := sim * 100
	switch verdict {
	case VerdictConflict:
		value += ConflictPenalty
	case VerdictMatch:
		value += MatchBonus
	}
	if exact {
		value += ExactBonus
	}

	return Score{
		Value:      value * weight,
		Similarity: sim,
		Verdict:    verdict,
		Exact:      exact,
	}
}

// Verdict checks a result description against the rule for category.
// Negative keywords win over positive ones. Unknown categories are neutral.
func (s *Scorer) Verdict(category linking.Category, description string) Verdict {
	rule, ok := s.rules[category]
	if !ok || description == "" {
		return VerdictNeutral
	}
	desc := strings.ToLower(description)
	for _, kw := range rule.Negative {
		if strings.Contains(desc, kw) {
			return VerdictConflict
		}
	}
	for _, kw := range rule.Positive {
		if strings.Contains(desc, kw) {
			return VerdictMatch
		}
	}
	return VerdictNeutral
}
