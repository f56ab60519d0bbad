// Package linking defines the shared types of the entity linking pipeline:
// input records, candidate queries, search results and resolutions.
//
// The pipeline stages live in subpackages (candidates, scoring, engine) and
// the external services behind pkg/lookup and pkg/querycache; they all speak
// in terms of the types declared here.
package linking

import (
	"context"
	"strings"
)

// Category is the coarse entity class hint carried by an input record.
type Category string

const (
	CategoryPerson       Category = "Person"
	CategoryWork         Category = "Work"
	CategoryPlace        Category = "Place"
	CategoryOrganization Category = "Organization"
	CategoryEvent        Category = "Event"
	CategoryConcept      Category = "Concept"
	CategoryUnknown      Category = "unknown"
)

// ParseCategory maps a raw category cell to a Category. Sub-typed values
// such as "Person/Painter" reduce to their first segment. Anything outside
// the enumeration is CategoryUnknown.
func ParseCategory(raw string) Category {
	head := strings.TrimSpace(strings.SplitN(raw, "/", 2)[0])
	for _, c := range []Category{
		CategoryPerson, CategoryWork, CategoryPlace,
		CategoryOrganization, CategoryEvent, CategoryConcept,
	} {
		if strings.EqualFold(head, string(c)) {
			return c
		}
	}
	return CategoryUnknown
}

// Record is one row of the resolution input.
type Record struct {
	// Row is the 1-based data row number in the source table.
	Row        int
	Name       string
	Category   Category
	Notes      string
	Resolution *Resolution
}

// Tier is a coarse banding of a numeric match score.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
	TierNone   Tier = "None"
)

// Resolution is the outcome of a successful resolution pass for a record.
type Resolution struct {
	Identifier  string   `json:"identifier"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Tier        Tier     `json:"confidence_tier"`
	Rationale   string   `json:"rationale"`
	Score       float64  `json:"score"`
	Strategy    Strategy `json:"strategy"`
}

// Strategy tags the heuristic that produced a candidate query.
type Strategy string

const (
	StrategyCleanedName Strategy = "CleanedName"
	StrategySegment     Strategy = "Segment"
	StrategySubject     Strategy = "Subject"
	StrategyContextual  Strategy = "Contextual"
	StrategyFromNotes   Strategy = "FromNotes"
	StrategyOriginal    Strategy = "Original"
)

// Query is a derived search string tried against the lookup services.
type Query struct {
	Text     string   `json:"text"`
	Strategy Strategy `json:"strategy"`
	Weight   float64  `json:"weight"`
}

// Origin identifies which search capability produced a result.
type Origin string

const (
	OriginEntitySearch   Origin = "EntitySearch"
	OriginFullTextSearch Origin = "FullTextSearch"
)

// SearchResult is one candidate entity returned by a lookup.
type SearchResult struct {
	Identifier  string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Origin      Origin `json:"origin"`
}

// Entity is the stored record behind an identifier, as used to check an
// existing resolution.
type Entity struct {
	Identifier  string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases,omitempty"`
}

// MaxResults caps the number of results kept per query.
const MaxResults = 5

// Searcher is the lookup capability the resolution engine depends on.
// Implementations never return an error: failures degrade to no results.
type Searcher interface {
	Search(ctx context.Context, query string, mode Origin) []SearchResult
}
