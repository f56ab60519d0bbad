// Package candidates turns a noisy record name into an ordered list of
// alternative search queries.
//
// Every strategy that applies fires; the combined list is then deduplicated
// case-insensitively, keeping the first occurrence. The output is fully
// determined by the inputs and the generator's tables.
package candidates

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
)

// Strategy weights.
const (
	WeightCleanedName = 1.0
	WeightSegment     = 0.8
	WeightSubject     = 0.9
	WeightContextual  = 0.85
	WeightFromNotes   = 0.95
	WeightOriginal    = 1.0
)

const (
	maxContextConcepts = 3
	minSegmentLen      = 4
	minNoteEntityLen   = 4
	minQueryLen        = 3
)

var (
	parenPattern    = regexp.MustCompile(`\s*\(.*?\)`)
	bracketPattern  = regexp.MustCompile(`\s*\[.*?\]`)
	portraitPattern = regexp.MustCompile(`(?i)portrait of\s+`)
	notesPattern    = regexp.MustCompile(`[A-Za-z][A-Za-z\s.\-']{2,}`)
)

// Config holds the tables a Generator works from. Zero values fall back to
// the package defaults.
type Config struct {
	Connectors      []string
	ContextKeywords []ContextKeyword
	NoteStopwords   []string
}

// Generator produces candidate queries. It is safe for concurrent use.
type Generator struct {
	connectors []*regexp.Regexp
	keywords   []ContextKeyword
	stopwords  map[string]bool
}

// NewGenerator builds a Generator from cfg.
func NewGenerator(cfg Config) *Generator {
	if len(cfg.Connectors) == 0 {
		cfg.Connectors = DefaultConnectors
	}
	if len(cfg.ContextKeywords) == 0 {
		cfg.ContextKeywords = DefaultContextKeywords
	}
	if len(cfg.NoteStopwords) == 0 {
		cfg.NoteStopwords = DefaultNoteStopwords
	}

	g := &Generator{
		keywords:  cfg.ContextKeywords,
		stopwords: make(map[string]bool, len(cfg.NoteStopwords)),
	}
	for _, c := range cfg.Connectors {
		g.connectors = append(g.connectors, regexp.MustCompile(`(?i)\s+`+regexp.QuoteMeta(c)+`\s+`))
	}
	for _, s := range cfg.NoteStopwords {
		g.stopwords[strings.ToLower(s)] = true
	}
	return g
}

// Generate returns the ordered candidate queries for a record. It fails with
// ErrEmptyInput when name is empty or whitespace.
func (g *Generator) Generate(name string, category linking.Category, notes string) ([]linking.Query, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return nil, fmt.Errorf("generate candidates: %w", qerrors.ErrEmptyInput)
	}
	notes = norm.NFC.String(notes)

	var queries []linking.Query
	add := func(text string, s linking.Strategy, w float64) {
		queries = append(queries, linking.Query{Text: text, Strategy: s, Weight: w})
	}

	clean := CleanName(name)
	if clean != "" && clean != name {
		add(clean, linking.StrategyCleanedName, WeightCleanedName)
	}

	for _, seg := range g.segments(name) {
		add(seg, linking.StrategySegment, WeightSegment)
	}

	if subject, ok := portraitSubject(name); ok {
		add(subject, linking.StrategySubject, WeightSubject)
	}

	concepts := g.contextConcepts(notes)
	targets := []string{name}
	if clean != "" && clean != name {
		targets = append(targets, clean)
	}
	for _, t := range targets {
		for _, c := range concepts {
			add(t+" "+c, linking.StrategyContextual, WeightContextual)
		}
	}

	for _, entity := range g.noteEntities(notes) {
		add(entity, linking.StrategyFromNotes, WeightFromNotes)
	}

	add(name, linking.StrategyOriginal, WeightOriginal)

	return dedupe(queries), nil
}

// CleanName strips parenthetical and bracketed asides from a name.
func CleanName(name string) string {
	name = parenPattern.ReplaceAllString(name, "")
	name = bracketPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

func (g *Generator) segments(name string) []string {
	var out []string
	for _, re := range g.connectors {
		parts := re.Split(name, -1)
		if len(parts) < 2 {
			continue
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if len(p) >= minSegmentLen {
				out = append(out, p)
			}
		}
	}
	return out
}

func portraitSubject(name string) (string, bool) {
	if !strings.Contains(strings.ToLower(name), "portrait of") {
		return "", false
	}
	subject := strings.TrimSpace(portraitPattern.ReplaceAllString(name, ""))
	return subject, subject != ""
}

// contextConcepts returns up to three distinct concept words implied by notes.
func (g *Generator) contextConcepts(notes string) []string {
	if notes == "" {
		return nil
	}
	lower := strings.ToLower(notes)
	seen := make(map[string]bool)
	var out []string
	for _, kw := range g.keywords {
		if !strings.Contains(lower, strings.ToLower(kw.Keyword)) {
			continue
		}
		for _, c := range kw.Concepts {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			if len(out) == maxContextConcepts {
				return out
			}
		}
	}
	return out
}

// noteEntities extracts Latin-script runs from notes that look like names.
func (g *Generator) noteEntities(notes string) []string {
	var out []string
	for _, m := range notesPattern.FindAllString(notes, -1) {
		m = strings.TrimSpace(m)
		if len(m) < minNoteEntityLen || g.stopwords[strings.ToLower(m)] {
			continue
		}
		out = append(out, m)
	}
	return out
}

func dedupe(queries []linking.Query) []linking.Query {
	seen := make(map[string]bool, len(queries))
	out := make([]linking.Query, 0, len(queries))
	for _, q := range queries {
		key := strings.ToLower(q.Text)
		if seen[key] || (len(key) < minQueryLen && q.Strategy != linking.StrategyOriginal) {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
