package extract

import (
	"regexp"
	"strings"

	"github.com/otherjamesbrown/qidlink/pkg/triples"
)

// IndexRow is one row of a book index: a main heading with an optional
// sub-entry, detail and location.
type IndexRow struct {
	Index     int
	MainEntry string
	SubEntry  string
	Detail    string
	Location  string
}

var (
	mainEntryPattern = regexp.MustCompile(`^(.+?)\s*\((.+?)\)$`)
	inPlacePattern   = regexp.MustCompile(`\bin\s+([A-Z0-9][a-zA-Z0-9\s.,()\-]+)`)
	forPattern       = regexp.MustCompile(`\bfor\s+([A-Z][a-zA-Z0-9\s.,()\-]+)`)
	actionByPattern  = regexp.MustCompile(`(?i)(.+?)\s+(built|designed|painted|created) by\s+(.+)`)
	protectorPattern = regexp.MustCompile(`(?i)^(.+?)\s+as protector of`)
	numericPattern   = regexp.MustCompile(`^[\d\s.,\-]+$`)
)

// artKeywords start index phrases that name a work rather than an act of patronage.
var artKeywords = []string{
	"fresco", "painting", "drawing", "sculpture", "bust", "statue", "altarpiece",
	"decoration", "design", "work", "sketch", "model", "portrait", "view",
	"capriccio", "etching", "engraving", "print", "picture", "monument", "tomb",
}

// SplitMainEntry splits "Name (identity)" into its parts.
func SplitMainEntry(entry string) (name, identity string) {
	if m := mainEntryPattern.FindStringSubmatch(entry); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return entry, ""
}

// ExtractIndex returns the triples found in an index row. The sub-entry and
// detail are each matched against one rule in order; the "in Place" rule
// adds a located_in triple and still lets the general rule fire.
func ExtractIndex(row IndexRow) []triples.Triple {
	if row.MainEntry == "" {
		return nil
	}

	var out []triples.Triple
	add := func(subject string, p triples.Predicate, object string) {
		if subject == "" || object == "" {
			return
		}
		out = append(out, triples.Triple{Subject: subject, Predicate: p, Object: object, SourceRow: row.Index})
	}

	name, identity := SplitMainEntry(row.MainEntry)
	add(name, triples.Is, identity)
	add(name, triples.LocatedIn, row.Location)

	for _, text := range []string{row.SubEntry, row.Detail} {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)

		if strings.HasPrefix(lower, "and ") {
			add(name, triples.CollaboratedOn, strings.TrimSpace(text[4:]))
			continue
		}

		if m := actionByPattern.FindStringSubmatch(text); m != nil {
			phrase := strings.TrimSpace(m[0])
			add(name, triples.Commissioned, phrase)
			add(strings.TrimSpace(m[3]), triples.Predicate(strings.ToLower(m[2])), phrase)
			continue
		}

		if strings.Contains(lower, "protector of") {
			if m := protectorPattern.FindStringSubmatch(text); m != nil {
				add(strings.TrimSpace(m[1]), triples.Sponsored, name)
				continue
			}
		}

		if strings.Contains(lower, "collection of") {
			add(name, triples.Sponsored, text)
			continue
		}

		if strings.Contains(lower, "during reign") {
			add(name, triples.OccurredDuring, text)
			continue
		}

		if m := forPattern.FindStringSubmatch(text); m != nil {
			recipient := strings.TrimRight(strings.TrimSpace(m[1]), ".,;()")
			add(name, triples.Created, text)
			add(text, triples.IntendedFor, recipient)
			continue
		}

		if m := inPlacePattern.FindStringSubmatch(text); m != nil {
			loc := strings.TrimSpace(m[1])
			if !numericPattern.MatchString(loc) && !strings.Contains(strings.ToLower(loc), "century") {
				add(text, triples.LocatedIn, strings.TrimRight(loc, ".,;()"))
			}
		}

		p := triples.Sponsored
		if !strings.HasPrefix(name, "Accademia") && hasAnyPrefix(lower, artKeywords) {
			p = triples.Created
		}
		add(name, p, text)
	}
	return out
}
