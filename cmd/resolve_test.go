package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/qidlink/pkg/tabular"
)

const resolveInput = "Refined_Formal_Name,Original-Refined_Category,Original-Status/Notes\n" +
	"Gian Lorenzo Bernini,Person,\n" +
	"Unknown Thing,Concept,\n"

func TestResolve_EndToEnd(t *testing.T) {
	f := newFakeServices(t)
	deps := newTestDeps(t, f)
	input := writeFile(t, "records.csv", resolveInput)

	out, err := execute(t, NewResolveCommand(deps), input)
	require.NoError(t, err)
	assert.Contains(t, out, "Pass Third-Query: 2 rows")
	assert.Contains(t, out, "Resolved:         1 (High 1")
	assert.Contains(t, out, "Unresolved:       1")

	table, err := tabular.ReadFile(input)
	require.NoError(t, err)
	pass := tabular.Pass(DefaultPass)
	assert.Equal(t, "Q5580", table.Get(0, pass.QID()))
	assert.Equal(t, "Gian Lorenzo Bernini", table.Get(0, pass.Label()))
	assert.Contains(t, table.Get(0, pass.Logic()), "Score: 130.0")
	assert.Empty(t, table.Get(1, pass.QID()))

	// Second run: the resolved row is kept and every lookup is served
	// from the saved cache.
	before := f.requests.Load()
	out, err = execute(t, NewResolveCommand(deps), input, "--output", "json")
	require.NoError(t, err)

	var summary struct {
		Total           int `json:"total"`
		AlreadyResolved int `json:"already_resolved"`
		Unresolved      int `json:"unresolved"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.AlreadyResolved)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Equal(t, before, f.requests.Load())
}

func TestResolve_SeparateOutputLeavesInputAlone(t *testing.T) {
	deps := newTestDeps(t, newFakeServices(t))
	input := writeFile(t, "records.csv", resolveInput)
	dest := writeFile(t, "out.csv", "")

	_, err := execute(t, NewResolveCommand(deps), input, "-o", dest)
	require.NoError(t, err)

	orig, err := tabular.ReadFile(input)
	require.NoError(t, err)
	assert.False(t, orig.HasColumn(tabular.Pass(DefaultPass).QID()))

	got, err := tabular.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "Q5580", got.Get(0, tabular.Pass(DefaultPass).QID()))
}

func TestResolve_ForceWritesNewPass(t *testing.T) {
	deps := newTestDeps(t, newFakeServices(t))
	input := writeFile(t, "records.csv", resolveInput)

	_, err := execute(t, NewResolveCommand(deps), input)
	require.NoError(t, err)
	_, err = execute(t, NewResolveCommand(deps), input, "--force")
	require.NoError(t, err)

	table, err := tabular.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, "Q5580", table.Get(0, "Third-Query_QID"))
	assert.Equal(t, "Q5580", table.Get(0, "Third-Query-2_QID"))
}

func TestResolve_OnlyUnresolvedFrom(t *testing.T) {
	f := newFakeServices(t)
	deps := newTestDeps(t, f)
	input := writeFile(t, "records.csv",
		"Refined_Formal_Name,Original-Refined_Category,Second-Query_QID\n"+
			"Gian Lorenzo Bernini,Person,Q5580\n"+
			"Unknown Thing,Concept,\n")

	out, err := execute(t, NewResolveCommand(deps), input, "--only-unresolved-from", "Second-Query", "--output", "json")
	require.NoError(t, err)

	var summary struct {
		Skipped  int `json:"skipped"`
		Resolved int `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Resolved)
}

func TestResolve_MissingNameColumn(t *testing.T) {
	deps := newTestDeps(t, newFakeServices(t))
	input := writeFile(t, "records.csv", "Name\nBernini\n")

	_, err := execute(t, NewResolveCommand(deps), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Refined_Formal_Name")
}
