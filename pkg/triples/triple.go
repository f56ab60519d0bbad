// Package triples defines relation triples extracted from catalogue text and
// the set operations applied to them after extraction.
package triples

// Predicate is a relation name from the fixed extraction vocabulary.
type Predicate string

// Predicates produced from title, artist and location fields.
const (
	CreatedBy       Predicate = "created_by"
	LocatedAt       Predicate = "located_at"
	PublicationDate Predicate = "publication_date"
	PartOf          Predicate = "part_of"
	Depicts         Predicate = "depicts"
	PreparatoryFor  Predicate = "preparatory_for"
	OwnedBy         Predicate = "owned_by"
	CurrentLocation Predicate = "current_location"
	PublishedBy     Predicate = "published_by"
	HasTitleRole    Predicate = "has_title_role"
)

// Predicates produced from index entries.
const (
	Is             Predicate = "is"
	LocatedIn      Predicate = "located_in"
	CollaboratedOn Predicate = "collaborated_on"
	Commissioned   Predicate = "commissioned"
	Built          Predicate = "built"
	Designed       Predicate = "designed"
	Painted        Predicate = "painted"
	Created        Predicate = "created"
	Sponsored      Predicate = "sponsored"
	OccurredDuring Predicate = "occurred_during"
	IntendedFor    Predicate = "intended_for"
)

// Predicates introduced by refinement.
const (
	ReferTo     Predicate = "refer_to"
	DedicatedTo Predicate = "dedicated_to"
)

var displayNames = map[Predicate]string{
	CreatedBy:       "created",
	LocatedAt:       "is located in",
	PublicationDate: "published in",
	PartOf:          "is part of",
	Depicts:         "depicts",
	PreparatoryFor:  "is preparatory for",
	OwnedBy:         "owned by",
	CurrentLocation: "current location is",
	PublishedBy:     "published by",
	HasTitleRole:    "has title role",
}

// DisplayName returns the reader-facing wording of p. Predicates without a
// display form are returned unchanged.
func (p Predicate) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

var vocabulary = map[Predicate]bool{
	CreatedBy: true, LocatedAt: true, PublicationDate: true, PartOf: true,
	Depicts: true, PreparatoryFor: true, OwnedBy: true, CurrentLocation: true,
	PublishedBy: true, HasTitleRole: true,
	Is: true, LocatedIn: true, CollaboratedOn: true, Commissioned: true,
	Built: true, Designed: true, Painted: true, Created: true, Sponsored: true,
	OccurredDuring: true, IntendedFor: true,
	ReferTo: true, DedicatedTo: true,
}

// Known reports whether p is in the vocabulary.
func (p Predicate) Known() bool {
	return vocabulary[p]
}

// ParsePredicate maps a stored predicate back to the vocabulary, accepting
// either the raw name or its display form. Raw names win, so "created"
// reads as Created rather than CreatedBy.
func ParsePredicate(s string) Predicate {
	if p := Predicate(s); p.Known() {
		return p
	}
	for p, name := range displayNames {
		if s == name {
			return p
		}
	}
	return Predicate(s)
}

// Triple is one (subject, predicate, object) fact. SubjectID and ObjectID
// carry knowledge-base identifiers when the source row supplied them.
// SourceRow is the 1-based data row the triple was extracted from.
type Triple struct {
	Subject   string    `json:"subject"`
	SubjectID string    `json:"subject_id,omitempty"`
	Predicate Predicate `json:"predicate"`
	Object    string    `json:"object"`
	ObjectID  string    `json:"object_id,omitempty"`
	SourceRow int       `json:"source_row"`
}

type exactKey struct {
	subject, object string
	predicate       Predicate
	row             int
}

type semanticKey struct {
	subject, object string
	predicate       Predicate
}

// Dedup removes triples identical in subject, predicate, object and source
// row, keeping the first occurrence.
func Dedup(ts []Triple) []Triple {
	seen := make(map[exactKey]bool, len(ts))
	out := make([]Triple, 0, len(ts))
	for _, t := range ts {
		k := exactKey{t.Subject, t.Object, t.Predicate, t.SourceRow}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

// SemanticDedup removes triples identical in subject, predicate and object
// regardless of source row, keeping the first occurrence.
func SemanticDedup(ts []Triple) []Triple {
	seen := make(map[semanticKey]bool, len(ts))
	out := make([]Triple, 0, len(ts))
	for _, t := range ts {
		k := semanticKey{t.Subject, t.Object, t.Predicate}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

// Merge concatenates sets in order and removes exact duplicates.
func Merge(sets ...[]Triple) []Triple {
	var n int
	for _, s := range sets {
		n += len(s)
	}
	all := make([]Triple, 0, n)
	for _, s := range sets {
		all = append(all, s...)
	}
	return Dedup(all)
}
