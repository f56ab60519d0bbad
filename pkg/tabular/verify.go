package tabular

import (
	"strings"

	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/linking/verify"
)

func (p Pass) VerifyQID() string         { return string(p) + "_Verify_QID" }
func (p Pass) VerifyResult() string      { return string(p) + "_Verify_Result" }
func (p Pass) VerifyReason() string      { return string(p) + "_Verify_Reason" }
func (p Pass) VerifyLabel() string       { return string(p) + "_Verify_Label" }
func (p Pass) VerifyDescription() string { return string(p) + "_Verify_Description" }

// VerifyColumns returns the verification columns in the order they are appended.
func (p Pass) VerifyColumns() []string {
	return []string{p.VerifyQID(), p.VerifyResult(), p.VerifyReason(), p.VerifyLabel(), p.VerifyDescription()}
}

// VerifyItems builds one verification item per data row from the pass's
// identifier column.
func VerifyItems(t *Table, cols Columns, p Pass) []verify.Item {
	items := make([]verify.Item, t.Len())
	for i := range t.Rows {
		items[i] = verify.Item{
			Row:        i + 1,
			Name:       strings.TrimSpace(t.Get(i, cols.Name)),
			Category:   linking.ParseCategory(t.Get(i, cols.Category)),
			Identifier: strings.TrimSpace(t.Get(i, p.QID())),
		}
	}
	return items
}

// ApplyVerification writes each result into the pass's verification
// columns, creating them if needed.
func ApplyVerification(t *Table, p Pass, results []verify.Result) {
	for _, c := range p.VerifyColumns() {
		t.EnsureColumn(c)
	}
	for _, r := range results {
		if r.Row < 1 || r.Row > t.Len() {
			continue
		}
		i := r.Row - 1
		t.Set(i, p.VerifyQID(), r.Identifier)
		t.Set(i, p.VerifyResult(), string(r.Outcome))
		t.Set(i, p.VerifyReason(), r.Reason)
		t.Set(i, p.VerifyLabel(), r.Label)
		t.Set(i, p.VerifyDescription(), r.Description)
	}
}

// rejected reports whether the identifier currently in the pass columns of
// row was judged Invalid by a verification run.
func rejected(t *Table, row int, p Pass) bool {
	if verify.Outcome(strings.TrimSpace(t.Get(row, p.VerifyResult()))) != verify.OutcomeInvalid {
		return false
	}
	return strings.TrimSpace(t.Get(row, p.VerifyQID())) == strings.TrimSpace(t.Get(row, p.QID()))
}

// clearVerification drops a stale verdict once the pass holds a different
// identifier than the one that was checked.
func clearVerification(t *Table, row int, p Pass) {
	if !t.HasColumn(p.VerifyQID()) {
		return
	}
	if strings.TrimSpace(t.Get(row, p.VerifyQID())) == strings.TrimSpace(t.Get(row, p.QID())) {
		return
	}
	for _, c := range p.VerifyColumns() {
		t.Set(row, c, "")
	}
}
