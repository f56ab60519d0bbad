package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/linking/scoring"
)

type fakeFetcher struct {
	entities map[string]linking.Entity
	fail     map[string]error
	batches  [][]string
}

func (f *fakeFetcher) GetEntities(ctx context.Context, ids []string) (map[string]linking.Entity, error) {
	f.batches = append(f.batches, append([]string(nil), ids...))
	out := make(map[string]linking.Entity)
	for _, id := range ids {
		if err, ok := f.fail[id]; ok {
			return nil, err
		}
		if e, ok := f.entities[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

var (
	bernini = linking.Entity{
		Identifier:  "Q5580",
		Label:       "Gian Lorenzo Bernini",
		Description: "Italian sculptor and painter",
		Aliases:     []string{"Bernini"},
	}
	rome = linking.Entity{Identifier: "Q220", Label: "Rome", Description: "capital city of Italy", Aliases: []string{"Roma"}}
)

func TestGradeName(t *testing.T) {
	tests := []struct {
		name, label string
		aliases     []string
		want        NameGrade
	}{
		{"gian lorenzo bernini ", "Gian Lorenzo Bernini", nil, NameMatch},
		{"Bernini", "Gian Lorenzo Bernini", []string{"BERNINI"}, NameMatch},
		{"Lorenzo Bernini", "Gian Lorenzo Bernini", nil, NamePartial},
		{"Rome, Italy", "Rome", nil, NamePartial},
		{"Paris", "Rome", []string{"Roma"}, NameMismatch},
		{"Roma", "Rome", []string{"Roma"}, NameMatch},
		{"Paris", "", nil, NameMismatch},
		{"", "Rome", nil, NameMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, GradeName(tt.name, tt.label, tt.aliases))
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		grade   NameGrade
		verdict scoring.Verdict
		want    Outcome
	}{
		{NameMatch, scoring.VerdictMatch, OutcomeValid},
		{NameMatch, scoring.VerdictConflict, OutcomeInvalid},
		{NameMatch, scoring.VerdictNeutral, OutcomeReview},
		{NamePartial, scoring.VerdictMatch, OutcomeReview},
		{NamePartial, scoring.VerdictConflict, OutcomeReview},
		{NamePartial, scoring.VerdictNeutral, OutcomeReview},
		{NameMismatch, scoring.VerdictMatch, OutcomeInvalid},
		{NameMismatch, scoring.VerdictNeutral, OutcomeInvalid},
	}
	for _, tt := range tests {
		t.Run(string(tt.grade)+"/"+string(tt.verdict), func(t *testing.T) {
			got, reason := Decide(tt.grade, tt.verdict, linking.CategoryPerson, bernini)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}

	_, reason := Decide(NameMatch, scoring.VerdictConflict, linking.CategoryPlace, bernini)
	assert.Equal(t, "Name match but Category conflict (Expected Place, got Italian sculptor and painter)", reason)
}

func TestVerify(t *testing.T) {
	f := &fakeFetcher{entities: map[string]linking.Entity{"Q5580": bernini, "Q220": rome}}
	v := New(f, nil)

	items := []Item{
		{Row: 1, Name: "Gian Lorenzo Bernini", Category: linking.CategoryPerson, Identifier: "Q5580"},
		{Row: 2, Name: "Roma", Category: linking.CategoryPerson, Identifier: "Q220"},
		{Row: 3, Name: "Paris", Category: linking.CategoryPlace, Identifier: "Q220"},
		{Row: 4, Name: "Rome", Category: linking.CategoryUnknown, Identifier: " Q220 "},
		{Row: 5, Name: "Lost", Category: linking.CategoryPlace, Identifier: "Q999999"},
		{Row: 6, Name: "Nothing", Category: linking.CategoryPlace},
		{Row: 7, Name: "Property", Category: linking.CategoryConcept, Identifier: "P31"},
	}
	results, sum, err := v.Verify(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, len(items))

	outcomes := make([]Outcome, len(results))
	for i, r := range results {
		outcomes[i] = r.Outcome
		assert.Equal(t, items[i].Row, r.Row)
	}
	assert.Equal(t, []Outcome{
		OutcomeValid,
		OutcomeInvalid, // alias match, but a city is not a person
		OutcomeInvalid,
		OutcomeReview,
		OutcomeInvalid,
		OutcomeSkipped,
		OutcomeSkipped,
	}, outcomes)

	assert.Equal(t, "Gian Lorenzo Bernini", results[0].Label)
	assert.Equal(t, scoring.VerdictMatch, results[0].Category)
	assert.Equal(t, "Name mismatch (Wiki: Rome)", results[2].Reason)
	assert.Equal(t, "Q220", results[3].Identifier)
	assert.Equal(t, "Identifier not found in the knowledge base", results[4].Reason)

	// Duplicates are fetched once; non-item identifiers are never fetched.
	require.Len(t, f.batches, 1)
	assert.Equal(t, []string{"Q5580", "Q220", "Q999999"}, f.batches[0])

	assert.Equal(t, &Summary{
		Total: 7, Valid: 1, Invalid: 3, Review: 1, Skipped: 2, Fetched: 2, Batches: 1,
	}, sum)
}

func TestVerify_Batches(t *testing.T) {
	f := &fakeFetcher{entities: map[string]linking.Entity{"Q220": rome}}
	v := New(f, nil, WithBatchSize(2))

	items := []Item{
		{Row: 1, Identifier: "Q1"},
		{Row: 2, Identifier: "Q2"},
		{Row: 3, Identifier: "Q3"},
		{Row: 4, Name: "Rome", Category: linking.CategoryPlace, Identifier: "Q220"},
		{Row: 5, Identifier: "Q1"},
	}
	_, sum, err := v.Verify(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Q1", "Q2"}, {"Q3", "Q220"}}, f.batches)
	assert.Equal(t, 2, sum.Batches)
	assert.Equal(t, 1, sum.Valid)
}

func TestVerify_FailedBatchIsUnverified(t *testing.T) {
	f := &fakeFetcher{
		entities: map[string]linking.Entity{"Q220": rome},
		fail: map[string]error{"Q3": &qerrors.LookupError{
			Code: qerrors.ErrServiceUnavailable, Stage: "wbgetentities", Message: "down",
		}},
	}
	v := New(f, nil, WithBatchSize(1))

	results, sum, err := v.Verify(context.Background(), []Item{
		{Row: 1, Name: "Rome", Category: linking.CategoryPlace, Identifier: "Q220"},
		{Row: 2, Name: "Somewhere", Category: linking.CategoryPlace, Identifier: "Q3"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, results[0].Outcome)
	assert.Equal(t, OutcomeUnverified, results[1].Outcome)
	assert.Equal(t, "Lookup failed (service_unavailable)", results[1].Reason)
	assert.Equal(t, 1, sum.Unverified)
}

func TestVerify_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{}
	_, _, err := New(f, nil).Verify(ctx, []Item{{Row: 1, Identifier: "Q1"}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.batches)
}
