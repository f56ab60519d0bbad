// Package refine splits compound subjects and objects of extracted triples
// into one triple per entity.
//
// Subjects go through a cascade of splitters where the first that produces
// more than one part wins. Each resulting subject then goes through an
// ordered list of object rules; the first rule that applies decides the
// emitted triples and unmatched objects pass through unchanged.
package refine

import (
	"regexp"
	"strings"

	"github.com/otherjamesbrown/qidlink/pkg/triples"
)

// ListPrefixes open descriptive phrases that list several items.
var ListPrefixes = []string{
	"portraits of", "busts of", "statues of", "views of", "drawings of",
	"etchings of", "sketches of", "designs for", "projects for", "plans for",
	"visits to", "journeys to", "travels to", "trips to",
	"membership of", "editions of", "works of", "copies of", "engravings of",
	"purchase of", "sale of", "collection of", "acquisition of", "payment for",
	"friendship with", "correspondence with", "relations with", "dispute with",
	"patronage of", "support of", "protection of",
	"frescoes of", "paintings of", "sculptures of", "decorations of", "illustrations for",
	"scenes from", "stories from",
	"double portrait of", "self-portrait with",
}

// CommaSafePrefixes are list prefixes whose items never contain commas, so
// the list may be split on commas as well as on "and".
var CommaSafePrefixes = []string{
	"editions of", "works of", "membership of", "portraits of", "busts of",
	"statues of", "drawings of", "etchings of", "sketches of", "copies of",
	"engravings of", "designs for", "projects for", "plans for",
	"purchase of", "sale of", "collection of", "acquisition of",
	"frescoes of", "paintings of", "sculptures of", "decorations of",
	"friendship with", "correspondence with", "patronage of", "support of",
	"double portrait of", "self-portrait with",
}

// knownCompounds are fixed object phrases that name two things.
var knownCompounds = map[string]bool{
	"medals and gems":           true,
	"paintings and caricatures": true,
	"library and pictures":      true,
	"drawings and prints":       true,
}

var (
	surnamePairPattern   = regexp.MustCompile(`^([A-Z][a-z]+),\s+([A-Z][a-z]+)\s+and\s+([A-Z][a-z]+)$`)
	surnameTriplPattern  = regexp.MustCompile(`^([A-Z][a-z]+),\s+([A-Z][a-z]+),\s+([A-Z][a-z]+)\s+and\s+([A-Z][a-z]+)$`)
	namePairPattern      = regexp.MustCompile(`^([A-Z][a-z]+)\s+and\s+([A-Z][a-z]+)$`)
	compoundNounPattern  = regexp.MustCompile(`^([a-z]+(?: [a-z]+)*s)\s+and\s+([a-z]+(?: [a-z]+)*s)\s+(for|from|in|with|by)\s+(.+)$`)
	adjectiveNounPattern = regexp.MustCompile(`^([A-Z][a-z]+) and ([A-Z][a-z]+) ([a-z]+s)$`)
	dedicationPattern    = regexp.MustCompile(`(?i)^dedication of (.+) to (.+)`)
	listSeparator        = regexp.MustCompile(`,?\s+and\s+|,\s+`)
	andSeparator         = regexp.MustCompile(`\s+and\s+`)
)

var nounPrepositions = []string{"by", "with", "for", "from", "of", "in"}

var nounPrepPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(nounPrepositions))
	for i, p := range nounPrepositions {
		out[i] = regexp.MustCompile(`(?i)^(.*)\s+` + p + `\s+(.+)$`)
	}
	return out
}()

// Refine returns the triples t splits into. A triple with nothing to split
// comes back as a single-element slice equal to t.
func Refine(t triples.Triple) []triples.Triple {
	subjects := SplitSubject(t.Subject)
	split := len(subjects) > 1

	var out []triples.Triple
	for _, s := range subjects {
		// A split subject only keeps intended_for where it names the recipient.
		if split && t.Predicate == triples.IntendedFor && !strings.Contains(s, t.Object) {
			continue
		}
		st := t
		st.Subject = s
		out = append(out, refineObject(st)...)
	}
	return out
}

// RefineAll refines every triple in ts, keeping input order.
func RefineAll(ts []triples.Triple) []triples.Triple {
	out := make([]triples.Triple, 0, len(ts))
	for _, t := range ts {
		out = append(out, Refine(t)...)
	}
	return out
}

// SplitSubject runs the subject splitting cascade.
func SplitSubject(subject string) []string {
	for _, split := range []func(string) []string{
		splitSurnames,
		splitListPrefix,
		splitCompoundNounPrep,
		splitNounPrepList,
		splitPureList,
	} {
		if parts := split(subject); len(parts) > 1 {
			return parts
		}
	}
	return []string{subject}
}

// splitSurnames handles "Valeriani, Domenico and Giuseppe" and the
// three-name form, and falls back to a bare "Guercino and Preti".
func splitSurnames(s string) []string {
	if m := surnamePairPattern.FindStringSubmatch(s); m != nil {
		return []string{m[1] + ", " + m[2], m[1] + ", " + m[3]}
	}
	if m := surnameTriplPattern.FindStringSubmatch(s); m != nil {
		return []string{m[1] + ", " + m[2], m[1] + ", " + m[3], m[1] + ", " + m[4]}
	}
	if m := namePairPattern.FindStringSubmatch(s); m != nil {
		return []string{m[1], m[2]}
	}
	return nil
}

func splitListPrefix(s string) []string {
	lower := strings.ToLower(s)
	if !strings.Contains(lower, " and ") {
		return nil
	}
	for _, prefix := range ListPrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			return SplitList(s, s[:len(prefix)])
		}
	}
	return nil
}

// SplitList splits the items after prefix and re-attaches prefix to each:
// "portraits of A, B and C" gives "portraits of A", "portraits of B",
// "portraits of C". Only comma-safe prefixes split on commas.
func SplitList(text, prefix string) []string {
	content := strings.TrimSpace(text[len(prefix):])
	lowerPrefix := strings.ToLower(prefix)

	sep := andSeparator
	for _, p := range CommaSafePrefixes {
		if strings.HasPrefix(lowerPrefix, p) {
			sep = listSeparator
			break
		}
	}

	var out []string
	for _, p := range sep.Split(content, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lp := strings.ToLower(p)
		if (strings.HasSuffix(lowerPrefix, " of") && strings.HasPrefix(lp, "of ")) ||
			(strings.HasSuffix(lowerPrefix, " to") && strings.HasPrefix(lp, "to ")) {
			p = strings.TrimSpace(p[3:])
		}
		out = append(out, prefix+" "+p)
	}
	return out
}

// splitCompoundNounPrep handles "drawings and prints for Cardinal X".
func splitCompoundNounPrep(s string) []string {
	m := compoundNounPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return []string{m[1] + " " + m[3] + " " + m[4], m[2] + " " + m[3] + " " + m[4]}
}

// splitNounPrepList handles "commissions for Guercino and Preti". The head
// ends at the last occurrence of the first preposition that matches.
func splitNounPrepList(s string) []string {
	for i, re := range nounPrepPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		head, tail := m[1], m[2]
		if !strings.Contains(tail, " and ") {
			continue
		}
		var parts []string
		if strings.Contains(tail, ",") {
			parts = nonEmpty(listSeparator.Split(tail, -1))
		} else {
			parts = nonEmpty(strings.Split(tail, " and "))
		}
		if len(parts) < 2 {
			continue
		}
		out := make([]string, len(parts))
		for j, p := range parts {
			out[j] = head + " " + nounPrepositions[i] + " " + p
		}
		return out
	}
	return nil
}

// splitPureList handles "A, B and C". Plain "A and B" without a comma is
// left to the narrower rules.
func splitPureList(s string) []string {
	if !strings.Contains(s, " and ") || !strings.Contains(s, ",") {
		return nil
	}
	return nonEmpty(listSeparator.Split(s, -1))
}

type objectRule func(t triples.Triple) []triples.Triple

var objectRules = []objectRule{
	splitAndObject(triples.LocatedIn),
	splitAndObject(triples.CollaboratedOn),
	seeUnder,
	listPrefixObject,
	dedication,
	adjectiveNoun,
	knownCompound,
	namePairObject,
	splitterObject(splitCompoundNounPrep),
	splitterObject(splitNounPrepList),
	splitterObject(splitPureList),
}

func refineObject(t triples.Triple) []triples.Triple {
	for _, rule := range objectRules {
		if out := rule(t); out != nil {
			return out
		}
	}
	return []triples.Triple{t}
}

func withObjects(t triples.Triple, objects ...string) []triples.Triple {
	out := make([]triples.Triple, len(objects))
	for i, o := range objects {
		out[i] = t
		out[i].Object = o
	}
	return out
}

func splitAndObject(p triples.Predicate) objectRule {
	return func(t triples.Triple) []triples.Triple {
		if t.Predicate != p || !strings.Contains(t.Object, " and ") {
			return nil
		}
		var objects []string
		for _, o := range strings.Split(t.Object, " and ") {
			objects = append(objects, strings.Trim(strings.TrimSpace(o), ".,;"))
		}
		return withObjects(t, objects...)
	}
}

func seeUnder(t triples.Triple) []triples.Triple {
	const prefix = "see under "
	if !strings.HasPrefix(strings.ToLower(t.Object), prefix) {
		return nil
	}
	r := t
	r.Predicate = triples.ReferTo
	r.Object = strings.TrimSpace(t.Object[len(prefix):])
	return []triples.Triple{r}
}

func listPrefixObject(t triples.Triple) []triples.Triple {
	if parts := splitListPrefix(t.Object); parts != nil {
		return withObjects(t, parts...)
	}
	return nil
}

// dedication turns "dedication of W to R" into a dedicated_to link to the
// recipient plus the original predicate pointing at "dedication of W".
func dedication(t triples.Triple) []triples.Triple {
	m := dedicationPattern.FindStringSubmatch(t.Object)
	if m == nil {
		return nil
	}
	to := t
	to.Predicate = triples.DedicatedTo
	to.Object = strings.TrimSpace(m[2])
	to.ObjectID = ""

	of := t
	of.Object = "dedication of " + strings.TrimSpace(m[1])
	return []triples.Triple{to, of}
}

// adjectiveNoun handles "Roman and Venetian paintings".
func adjectiveNoun(t triples.Triple) []triples.Triple {
	m := adjectiveNounPattern.FindStringSubmatch(t.Object)
	if m == nil {
		return nil
	}
	return withObjects(t, m[1]+" "+m[3], m[2]+" "+m[3])
}

func knownCompound(t triples.Triple) []triples.Triple {
	if !knownCompounds[t.Object] {
		return nil
	}
	var objects []string
	for _, o := range strings.Split(t.Object, " and ") {
		objects = append(objects, strings.TrimSpace(o))
	}
	return withObjects(t, objects...)
}

func namePairObject(t triples.Triple) []triples.Triple {
	m := namePairPattern.FindStringSubmatch(t.Object)
	if m == nil {
		return nil
	}
	return withObjects(t, m[1], m[2])
}

func splitterObject(split func(string) []string) objectRule {
	return func(t triples.Triple) []triples.Triple {
		if parts := split(t.Object); len(parts) > 1 {
			return withObjects(t, parts...)
		}
		return nil
	}
}

func nonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
