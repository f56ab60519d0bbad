package extract

import (
	"regexp"
	"strings"

	"github.com/otherjamesbrown/qidlink/pkg/triples"
)

// Relation is a predicate and target found inside a title.
type Relation struct {
	Predicate triples.Predicate
	Target    string
}

var (
	provenancePattern = regexp.MustCompile(`[(\[]([^)\]]+)[)\]]$`)
	digitsPattern     = regexp.MustCompile(`^\d+$`)
	yearPattern       = regexp.MustCompile(`^\d{4}$`)

	viewOfPattern      = regexp.MustCompile(`(?i)(.+?),?\s+with\s+(?:view|portraits?)\s+of\s+(.+)`)
	publishedByPattern = regexp.MustCompile(`(?i)(.+?),?\s+published by\s+(.+)`)
	operaPattern       = regexp.MustCompile(`(?i)(.+?),?\s+from (?:the )?opera\s+(.+)`)

	locationSuffixPattern = regexp.MustCompile(`, ([A-Z][a-zA-Z.\s]+?)(?: (\d{4}))?$`)
	authorPattern         = regexp.MustCompile(`^([A-Z][a-zA-Z\s.]+):\s+(.+)`)
	adLocationPattern     = regexp.MustCompile(`\bad\s+([A-Z][a-zA-Z]+(?: [A-Z][a-zA-Z]+)?)`)
)

var prefixRules = []struct {
	pattern   *regexp.Regexp
	predicate triples.Predicate
}{
	{regexp.MustCompile(`(?i)^(?:Modello|Study|Design|Sketch) for\s+(.+)`), triples.PreparatoryFor},
	{regexp.MustCompile(`(?i)^(?:Final plate|Plate) of\s+(.+)`), triples.PartOf},
	{regexp.MustCompile(`(?i)^Frontispiece of\s+(.+)`), triples.PartOf},
	{regexp.MustCompile(`(?i)^(?:Interior|Exterior|View) of\s+(.+)`), triples.Depicts},
}

// titleRoleWords start suffix phrases that are titles or work types, not places.
var titleRoleWords = []string{
	"Duke", "Duchess", "Prince", "Princess", "Earl", "Count", "Marquess",
	"King", "Queen", "Pope", "Cardinal", "Portrait", "View", "Modello", "Study",
}

// structuralPrefixes start "X: Y" titles where X is not an author.
var structuralPrefixes = []string{
	"Frontispiece", "Modello", "Study", "Plate", "View", "Final plate",
	"Design", "Sketch", "Interior", "Exterior",
}

// preparatoryPrefixes mark works whose embedded location belongs to the target.
var preparatoryPrefixes = []string{"modello for", "study for", "design for", "sketch for"}

var embeddingPrepositions = []string{" at ", " near ", " in ", " on ", " al "}

const maxAuthorWords = 4

// Provenance splits a trailing bracketed ownership note such as
// "(Smith, London)" from text. Purely numeric brackets are not provenance.
func Provenance(text string) (rest string, parts []string, ok bool) {
	m := provenancePattern.FindStringSubmatchIndex(text)
	if m == nil {
		return text, nil, false
	}
	content := strings.TrimSpace(text[m[2]:m[3]])
	if digitsPattern.MatchString(content) {
		return text, nil, false
	}
	for _, p := range strings.Split(content, ",") {
		parts = append(parts, strings.TrimSpace(p))
	}
	return strings.TrimSpace(text[:m[0]]), parts, true
}

// ComplexStructure finds the clause relations of a title. Clause rules run
// in sequence and each narrows the subject for the next; prefix rules leave
// the subject whole. A two-part "Name, Title" text with no other relation
// yields depicts and has_title_role.
func ComplexStructure(text string) (subject string, rels []Relation) {
	subject = text

	if m := viewOfPattern.FindStringSubmatch(subject); m != nil {
		subject = strings.TrimSpace(m[1])
		for _, t := range splitNonEmpty(m[2], " and ") {
			rels = append(rels, Relation{triples.Depicts, t})
		}
	}

	if m := publishedByPattern.FindStringSubmatch(subject); m != nil {
		rels = append(rels, Relation{triples.PublishedBy, strings.TrimSpace(m[2])})
		subject = strings.TrimSpace(m[1])
	}

	if m := operaPattern.FindStringSubmatch(subject); m != nil {
		subject = strings.TrimSpace(m[1])
		rels = append(rels, Relation{triples.PartOf, strings.TrimSpace(m[2])})
	}

	for _, r := range prefixRules {
		if m := r.pattern.FindStringSubmatch(subject); m != nil {
			rels = append(rels, Relation{r.predicate, strings.TrimSpace(m[1])})
		}
	}

	if len(rels) == 0 && strings.Contains(subject, ",") {
		if _, _, _, isPlace := LocationSuffix(subject); !isPlace {
			parts := strings.Split(subject, ",")
			if len(parts) == 2 {
				rels = append(rels,
					Relation{triples.Depicts, strings.TrimSpace(parts[0])},
					Relation{triples.HasTitleRole, strings.TrimSpace(parts[1])},
				)
			}
		}
	}
	return subject, rels
}

// LocationSuffix splits a trailing ", Place" or ", Place 1642" from text.
func LocationSuffix(text string) (rest, location, date string, ok bool) {
	m := locationSuffixPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return text, "", "", false
	}
	location = strings.TrimSpace(text[m[2]:m[3]])
	for _, w := range titleRoleWords {
		if strings.HasPrefix(location, w) {
			return text, "", "", false
		}
	}
	if m[4] >= 0 {
		date = text[m[4]:m[5]]
	}
	return strings.TrimSpace(text[:m[0]]), location, date, true
}

// TitleInfo is a title broken into its parts. Clean is the title with every
// recognised part removed; the other fields are empty when absent.
type TitleInfo struct {
	Clean      string
	Author     string
	Location   string
	Date       string
	AdLocation string
}

// DecomposeTitle breaks a title into author, place and date parts.
func DecomposeTitle(text string) TitleInfo {
	info := TitleInfo{Clean: text}
	if text == "" {
		return info
	}

	if rest, loc, date, ok := LocationSuffix(text); ok {
		info.Clean, info.Location, info.Date = rest, loc, date
	}

	if m := authorPattern.FindStringSubmatch(info.Clean); m != nil {
		author := strings.TrimSpace(m[1])
		if len(strings.Fields(author)) <= maxAuthorWords && !hasAnyPrefix(author, structuralPrefixes) {
			info.Author = author
			info.Clean = strings.TrimSpace(m[2])
		}
	}

	if m := adLocationPattern.FindStringSubmatch(info.Clean); m != nil {
		info.AdLocation = strings.TrimSpace(m[1])
		info.Clean = strings.Trim(strings.ReplaceAll(info.Clean, m[0], ""), ", ")
	}
	return info
}

// EmbeddedLocation splits text at the last of " at ", " near ", " in ",
// " on " or " al ". A bare year after the preposition is not a location.
func EmbeddedLocation(text string) (subject, location string, ok bool) {
	best, prep := -1, ""
	for _, p := range embeddingPrepositions {
		if i := strings.LastIndex(text, p); i > best {
			best, prep = i, p
		}
	}
	if best < 0 {
		return text, "", false
	}
	location = strings.TrimSpace(text[best+len(prep):])
	if yearPattern.MatchString(location) {
		return text, "", false
	}
	return strings.TrimSpace(text[:best]), location, true
}

// IsPreparatory reports whether text names a preparatory work.
func IsPreparatory(text string) bool {
	return hasAnyPrefix(strings.ToLower(text), preparatoryPrefixes)
}

// LocationChain links adjacent parts of a comma-separated location:
// "Vault, S. Ignazio, Rome" gives Vault -> S. Ignazio -> Rome.
func LocationChain(location string, row int) []triples.Triple {
	parts := splitNonEmpty(location, ",")
	var out []triples.Triple
	for i := 0; i+1 < len(parts); i++ {
		out = append(out, triples.Triple{
			Subject:   parts[i],
			Predicate: triples.LocatedAt,
			Object:    parts[i+1],
			SourceRow: row,
		})
	}
	return out
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
