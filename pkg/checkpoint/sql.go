package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQL drivers accepted by OpenSQL.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const createTable = `CREATE TABLE IF NOT EXISTS checkpoint_keys (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, key)
)`

// SQLStore keeps processed keys in a checkpoint_keys table, one namespace
// per job. It runs against Postgres (lib/pq) or SQLite (modernc).
type SQLStore struct {
	db        *sql.DB
	driver    string
	namespace string
}

// OpenSQL connects to the database and creates the table if needed.
func OpenSQL(ctx context.Context, driver, dsn, namespace string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported checkpoint driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(2)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating checkpoint table: %w", err)
	}
	return &SQLStore{db: db, driver: driver, namespace: namespace}, nil
}

// Load returns the namespace's keys in insertion order.
func (s *SQLStore) Load(ctx context.Context) ([]string, error) {
	query := `SELECT key FROM checkpoint_keys WHERE namespace = $1 ORDER BY created_at, key`
	if s.driver == DriverSQLite {
		query = `SELECT key FROM checkpoint_keys WHERE namespace = ? ORDER BY rowid`
	}

	rows, err := s.db.QueryContext(ctx, query, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoint: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Add inserts keys, ignoring ones already present.
func (s *SQLStore) Add(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if s.driver == DriverPostgres {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO checkpoint_keys (namespace, key)
			 SELECT $1, unnest($2::text[])
			 ON CONFLICT (namespace, key) DO NOTHING`,
			s.namespace, pq.Array(keys),
		)
		if err != nil {
			return fmt.Errorf("recording checkpoint: %w", err)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording checkpoint: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO checkpoint_keys (namespace, key) VALUES (?, ?) ON CONFLICT (namespace, key) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("recording checkpoint: %w", err)
	}
	defer stmt.Close()

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, s.namespace, k); err != nil {
			return fmt.Errorf("recording checkpoint %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recording checkpoint: %w", err)
	}
	return nil
}

// Reset removes every key in the namespace.
func (s *SQLStore) Reset(ctx context.Context) error {
	query := `DELETE FROM checkpoint_keys WHERE namespace = $1`
	if s.driver == DriverSQLite {
		query = `DELETE FROM checkpoint_keys WHERE namespace = ?`
	}
	if _, err := s.db.ExecContext(ctx, query, s.namespace); err != nil {
		return fmt.Errorf("resetting checkpoint: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
