package lookup

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
)

func TestGetEntities(t *testing.T) {
	var gotIDs, gotProps, gotLang string
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "wbgetentities", q.Get("action"))
		gotIDs, gotProps, gotLang = q.Get("ids"), q.Get("props"), q.Get("languages")
		fmt.Fprint(w, `{"entities":{
			"Q5580":{"id":"Q5580",
				"labels":{"en":{"language":"en","value":"Gian Lorenzo Bernini"}},
				"descriptions":{"en":{"language":"en","value":"Italian sculptor and architect"}},
				"aliases":{"en":[{"language":"en","value":"Bernini"},{"language":"en","value":"Giovanni Lorenzo Bernini"}]}},
			"Q999999999":{"id":"Q999999999","missing":""}
		}}`)
	}, nil)

	got, err := c.GetEntities(context.Background(), []string{"Q5580", "Q999999999"})
	require.NoError(t, err)

	assert.Equal(t, "Q5580|Q999999999", gotIDs)
	assert.Equal(t, "labels|descriptions|aliases", gotProps)
	assert.Equal(t, "en", gotLang)

	require.Len(t, got, 1)
	e := got["Q5580"]
	assert.Equal(t, "Gian Lorenzo Bernini", e.Label)
	assert.Equal(t, "Italian sculptor and architect", e.Description)
	assert.Equal(t, []string{"Bernini", "Giovanni Lorenzo Bernini"}, e.Aliases)
}

func TestGetEntities_EntityWithoutEnglishText(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"entities":{"Q42":{"id":"Q42","labels":{"de":{"language":"de","value":"Douglas Adams"}}}}}`)
	}, nil)

	got, err := c.GetEntities(context.Background(), []string{"Q42"})
	require.NoError(t, err)
	require.Contains(t, got, "Q42")
	assert.Empty(t, got["Q42"].Label)
	assert.Empty(t, got["Q42"].Aliases)
}

func TestGetEntities_BatchLimit(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)

	ids := make([]string, MaxEntityBatch+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("Q%d", i+1)
	}
	_, err := c.GetEntities(context.Background(), ids)
	require.Error(t, err)
	assert.True(t, qerrors.IsValidation(err))

	got, err := c.GetEntities(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetEntities_ServiceError(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"no-such-entity","info":"Could not find an entity with the ID \"Qx\"."}}`)
	}, nil)

	_, err := c.GetEntities(context.Background(), []string{"Qx"})
	require.Error(t, err)
	var le *qerrors.LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, qerrors.ErrClientRequest, le.Code)
	assert.True(t, strings.HasPrefix(le.Message, "no-such-entity"))
}

func TestGetEntities_RetriesTransientFailure(t *testing.T) {
	var calls int
	c, _, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"entities":{"Q5580":{"id":"Q5580","labels":{"en":{"value":"Gian Lorenzo Bernini"}}}}}`)
	}, nil)

	got, err := c.GetEntities(context.Background(), []string{"Q5580"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "Gian Lorenzo Bernini", got["Q5580"].Label)
	assert.NotEmpty(t, sleeper.Waits())
}
