package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/qidlink/config"
	"github.com/otherjamesbrown/qidlink/pkg/db"
)

func failingConnect(context.Context, *config.Config) (*pgxpool.Pool, error) {
	return nil, errors.New("dial tcp 127.0.0.1:5432: connection refused")
}

func TestDbCommands_ConnectError(t *testing.T) {
	deps := newTestDeps(t, nil)
	deps.ConnectToDB = failingConnect

	for _, sub := range []string{"migrate", "status", "health"} {
		t.Run(sub, func(t *testing.T) {
			_, err := execute(t, NewDbCommand(deps), sub)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "connecting to database")
		})
	}
}

func TestConnectToDatabase_NoStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store = nil
	_, err := connectToDatabase(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no triple store configured")
}

func TestPrintMigrationStatus(t *testing.T) {
	applied := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	status := &db.MigrationStatus{
		Applied: []db.MigrationStatusEntry{{Version: "001", Name: "001_triples.sql", AppliedAt: &applied}},
		Pending: []db.MigrationStatusEntry{{Version: "002", Name: "002_sources.sql"}},
		Drift:   []db.MigrationStatusEntry{{Version: "000", Name: "000_old.sql", AppliedAt: &applied}},
	}

	var buf bytes.Buffer
	printMigrationStatus(&buf, status)
	out := buf.String()
	assert.Contains(t, out, "Applied Migrations (1)")
	assert.Contains(t, out, "2025-01-02 03:04:05")
	assert.Contains(t, out, "Pending Migrations (1)")
	assert.Contains(t, out, "Drift - applied but not shipped (1)")
	assert.Contains(t, out, "Summary: 1 applied, 1 pending")
	assert.Contains(t, out, "1 drift")

	buf.Reset()
	printMigrationStatus(&buf, &db.MigrationStatus{})
	assert.Contains(t, buf.String(), "No migrations found.")
}
