package scoring

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns the Ratcliff/Obershelp ratio of a and b after lower-casing:
// twice the number of matched runes divided by the total rune count. Two
// empty strings are identical.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(runes(strings.ToLower(a)), runes(strings.ToLower(b)))
	return m.Ratio()
}

// runes splits s into one-rune strings, the sequence unit the matcher compares.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
