package tabular

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
)

// Default input column names.
const (
	DefaultNameColumn     = "Refined_Formal_Name"
	DefaultCategoryColumn = "Original-Refined_Category"
	DefaultNotesColumn    = "Original-Status/Notes"
)

// Columns names the input columns a record is read from.
type Columns struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Notes    string `yaml:"notes"`
}

// DefaultColumns returns the standard input column names.
func DefaultColumns() Columns {
	return Columns{
		Name:     DefaultNameColumn,
		Category: DefaultCategoryColumn,
		Notes:    DefaultNotesColumn,
	}
}

// Pass is the column prefix of one resolution pass, such as "Third-Query".
type Pass string

func (p Pass) QID() string         { return string(p) + "_QID" }
func (p Pass) Label() string       { return string(p) + "_Label" }
func (p Pass) Description() string { return string(p) + "_Description" }
func (p Pass) Logic() string       { return string(p) + "_Logic" }

// Columns returns the pass columns in the order they are appended.
func (p Pass) Columns() []string {
	return []string{p.QID(), p.Label(), p.Description(), p.Logic()}
}

// TargetPass picks the columns a pass writes to. Rerunning a pass rewrites
// its columns in place; a forced rerun writes to "<name>-N" instead so the
// earlier results are kept.
func TargetPass(t *Table, name string, force bool) Pass {
	p := Pass(name)
	if !force || !t.HasColumn(p.QID()) {
		return p
	}
	for n := 2; ; n++ {
		next := Pass(fmt.Sprintf("%s-%d", name, n))
		if !t.HasColumn(next.QID()) {
			return next
		}
	}
}

var logicScorePattern = regexp.MustCompile(`Score: (-?[\d.]+)`)

// TierFunc bands a score into a confidence tier.
type TierFunc func(score float64) linking.Tier

// LoadRecords builds one record per data row. When pass columns already
// exist their values become the record's existing resolution, with the
// score read back from the logic text. An identifier without a readable
// score was filled in by hand and is treated as High. An identifier that
// verification judged Invalid is not carried over, so the row is resolved
// again.
func LoadRecords(t *Table, cols Columns, pass Pass, tierFor TierFunc) ([]*linking.Record, error) {
	if !t.HasColumn(cols.Name) {
		return nil, fmt.Errorf("load records: missing column %q: %w", cols.Name, qerrors.ErrValidation)
	}

	records := make([]*linking.Record, t.Len())
	for i := range t.Rows {
		records[i] = &linking.Record{
			Row:        i + 1,
			Name:       strings.TrimSpace(t.Get(i, cols.Name)),
			Category:   linking.ParseCategory(t.Get(i, cols.Category)),
			Notes:      strings.TrimSpace(t.Get(i, cols.Notes)),
			Resolution: existingResolution(t, i, pass, tierFor),
		}
	}
	return records, nil
}

func existingResolution(t *Table, row int, p Pass, tierFor TierFunc) *linking.Resolution {
	if p == "" {
		return nil
	}
	id := strings.TrimSpace(t.Get(row, p.QID()))
	if id == "" || rejected(t, row, p) {
		return nil
	}

	logic := t.Get(row, p.Logic())
	res := &linking.Resolution{
		Identifier:  id,
		Label:       t.Get(row, p.Label()),
		Description: t.Get(row, p.Description()),
		Rationale:   logic,
		Tier:        linking.TierHigh,
	}
	if m := logicScorePattern.FindStringSubmatch(logic); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			res.Score = score
			if tierFor != nil {
				res.Tier = tierFor(score)
			}
		}
	}
	return res
}

// ResolvedIn returns a predicate matching records whose row already has an
// identifier in the given pass that verification has not rejected. A
// missing column matches nothing.
func ResolvedIn(t *Table, p Pass) func(*linking.Record) bool {
	col := t.Column(p.QID())
	return func(rec *linking.Record) bool {
		if col < 0 || rec.Row < 1 || rec.Row > t.Len() {
			return false
		}
		return strings.TrimSpace(t.Rows[rec.Row-1][col]) != "" && !rejected(t, rec.Row-1, p)
	}
}

// ApplyResolutions writes each record's resolution into the pass columns,
// creating them if needed. Records without a resolution leave their cells
// as they are. A verification verdict for a replaced identifier is cleared.
func ApplyResolutions(t *Table, p Pass, records []*linking.Record) {
	for _, c := range p.Columns() {
		t.EnsureColumn(c)
	}
	for _, rec := range records {
		if rec.Resolution == nil || rec.Row < 1 || rec.Row > t.Len() {
			continue
		}
		i := rec.Row - 1
		t.Set(i, p.QID(), rec.Resolution.Identifier)
		t.Set(i, p.Label(), rec.Resolution.Label)
		t.Set(i, p.Description(), rec.Resolution.Description)
		t.Set(i, p.Logic(), rec.Resolution.Rationale)
		clearVerification(t, i, p)
	}
}
