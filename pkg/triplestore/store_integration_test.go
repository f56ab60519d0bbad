//go:build integration

package triplestore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/qidlink/pkg/db"
	"github.com/otherjamesbrown/qidlink/pkg/triples"
)

func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("QIDLINK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QIDLINK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	cfg := db.DefaultConfig()
	cfg.URL = dsn
	pool, err := db.Connect(ctx, cfg)
	require.NoError(t, err)
	defer db.Close(pool)

	_, err = db.RunMigrations(ctx, pool, db.Migrations())
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "DELETE FROM triples WHERE source = 'integration.csv'")
	require.NoError(t, err)

	s := New(pool)
	ts := []triples.Triple{
		{Subject: "Ecstasy of St Teresa", Predicate: triples.CreatedBy, Object: "Bernini", ObjectID: "Q44233", SourceRow: 1},
		{Subject: "Ecstasy of St Teresa", Predicate: triples.LocatedAt, Object: "Rome", SourceRow: 1},
	}

	n, err := s.SaveBatch(ctx, "integration.csv", ts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.SaveBatch(ctx, "integration.csv", ts)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.List(ctx, Filter{Source: "integration.csv", Predicate: triples.CreatedBy})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ts[0], got[0].Triple)

	count, err := s.Count(ctx, "integration.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
