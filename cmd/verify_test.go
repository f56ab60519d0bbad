package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/qidlink/pkg/tabular"
)

const verifyInput = "Refined_Formal_Name,Original-Refined_Category,Third-Query_QID\n" +
	"Gian Lorenzo Bernini,Person,Q5580\n" +
	"Unknown Thing,Concept,Q220\n" +
	"Nobody,Person,\n" +
	"Ghost Town,Place,Q404\n"

func TestVerify_EndToEnd(t *testing.T) {
	f := newFakeServices(t)
	deps := newTestDeps(t, f)
	input := writeFile(t, "linked.csv", verifyInput)

	out, err := execute(t, NewVerifyCommand(deps), input)
	require.NoError(t, err)
	assert.Contains(t, out, "Pass Third-Query: 4 rows, 2 entities in 1 batches")
	assert.Contains(t, out, "Valid:      1")
	assert.Contains(t, out, "Invalid:    2")
	assert.Contains(t, out, "Skipped:    1")
	assert.Equal(t, int32(1), f.requests.Load())

	table, err := tabular.ReadFile(input)
	require.NoError(t, err)
	pass := tabular.Pass(DefaultPass)
	assert.Equal(t, "Valid", table.Get(0, pass.VerifyResult()))
	assert.Equal(t, "Italian sculptor and painter", table.Get(0, pass.VerifyDescription()))
	assert.Equal(t, "Invalid", table.Get(1, pass.VerifyResult()))
	assert.Equal(t, "Name mismatch (Wiki: Rome)", table.Get(1, pass.VerifyReason()))
	assert.Equal(t, "Skipped", table.Get(2, pass.VerifyResult()))
	assert.Equal(t, "Identifier not found in the knowledge base", table.Get(3, pass.VerifyReason()))
	assert.Equal(t, "Q220", table.Get(1, pass.QID()), "verification never rewrites identifiers")

	// A later pass only skips the row whose identifier survived.
	out, err = execute(t, NewResolveCommand(deps), input,
		"--pass", "Fourth-Query", "--only-unresolved-from", "Third-Query", "--output", "json")
	require.NoError(t, err)

	var summary struct {
		Total   int `json:"total"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Skipped)
}

func TestVerify_RerunInSamePassResolvesInvalidRows(t *testing.T) {
	f := newFakeServices(t)
	deps := newTestDeps(t, f)
	input := writeFile(t, "linked.csv",
		"Refined_Formal_Name,Original-Refined_Category,Third-Query_QID\n"+
			"Gian Lorenzo Bernini,Person,Q220\n")

	_, err := execute(t, NewVerifyCommand(deps), input)
	require.NoError(t, err)

	_, err = execute(t, NewResolveCommand(deps), input)
	require.NoError(t, err)

	table, err := tabular.ReadFile(input)
	require.NoError(t, err)
	pass := tabular.Pass(DefaultPass)
	assert.Equal(t, "Q5580", table.Get(0, pass.QID()))
	assert.Empty(t, table.Get(0, pass.VerifyResult()), "verdict for the replaced identifier is cleared")
}

func TestVerify_Errors(t *testing.T) {
	deps := newTestDeps(t, newFakeServices(t))

	input := writeFile(t, "records.csv", "Refined_Formal_Name\nBernini\n")
	_, err := execute(t, NewVerifyCommand(deps), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Third-Query_QID")

	input = writeFile(t, "linked.csv", verifyInput)
	_, err = execute(t, NewVerifyCommand(deps), input, "--batch-size", "51")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--batch-size")
}

func TestVerify_JSONSummary(t *testing.T) {
	deps := newTestDeps(t, newFakeServices(t))
	input := writeFile(t, "linked.csv", verifyInput)
	dest := writeFile(t, "checked.csv", "")

	out, err := execute(t, NewVerifyCommand(deps), input, "-o", dest, "--output", "json")
	require.NoError(t, err)

	var summary struct {
		Total   int `json:"total"`
		Valid   int `json:"valid"`
		Invalid int `json:"invalid"`
		Fetched int `json:"fetched"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 2, summary.Invalid)
	assert.Equal(t, 2, summary.Fetched)

	original, err := tabular.ReadFile(input)
	require.NoError(t, err)
	assert.False(t, original.HasColumn("Third-Query_Verify_Result"))
}
