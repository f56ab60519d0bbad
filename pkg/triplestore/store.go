// Package triplestore persists extracted triples in Postgres.
//
// The schema lives in pkg/db migrations. Rows are unique on
// (subject, predicate, object, source_row), so loading the same file twice
// is a no-op.
package triplestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/qidlink/pkg/triples"
)

// Record is a stored triple with its load metadata.
type Record struct {
	ID        int64
	Triple    triples.Triple
	Source    string
	CreatedAt time.Time
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Subject   string
	Predicate triples.Predicate
	Source    string
	Limit     int
	Offset    int
}

// Store reads and writes the triples table.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store on an open pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var stageColumns = []string{
	"subject", "subject_id", "predicate", "object", "object_id", "source_row", "source",
}

// SaveBatch writes ts tagged with source and returns how many rows were new.
// Rows go through a temporary staging table with COPY, then into triples
// with ON CONFLICT DO NOTHING.
func (s *Store) SaveBatch(ctx context.Context, source string, ts []triples.Triple) (int64, error) {
	if len(ts) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE triples_stage (
			subject TEXT, subject_id TEXT, predicate TEXT,
			object TEXT, object_id TEXT, source_row INTEGER, source TEXT
		) ON COMMIT DROP
	`)
	if err != nil {
		return 0, fmt.Errorf("creating staging table: %w", err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"triples_stage"},
		stageColumns,
		pgx.CopyFromSlice(len(ts), func(i int) ([]any, error) {
			t := ts[i]
			return []any{
				t.Subject,
				t.SubjectID,
				string(t.Predicate),
				t.Object,
				t.ObjectID,
				int32(t.SourceRow),
				source,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying triples: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO triples (subject, subject_id, predicate, object, object_id, source_row, source)
		SELECT subject, subject_id, predicate, object, object_id, source_row, source
		FROM triples_stage
		ON CONFLICT (subject, predicate, object, source_row) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("inserting triples: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns stored triples matching f, oldest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	query, args := buildListQuery(f)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing triples: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanTripleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating triples: %w", err)
	}
	return out, nil
}

// Count returns the number of stored triples, optionally for one source.
func (s *Store) Count(ctx context.Context, source string) (int64, error) {
	query := "SELECT COUNT(*) FROM triples"
	var args []any
	if source != "" {
		query += " WHERE source = $1"
		args = append(args, source)
	}
	var n int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting triples: %w", err)
	}
	return n, nil
}

func buildListQuery(f Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, subject, subject_id, predicate, object, object_id,
		source_row, source, created_at
		FROM triples`)

	var (
		where []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Subject != "" {
		add("subject", f.Subject)
	}
	if f.Predicate != "" {
		add("predicate", string(f.Predicate))
	}
	if f.Source != "" {
		add("source", f.Source)
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	sb.WriteString(" ORDER BY id")
	if f.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", f.Offset)
	}
	return sb.String(), args
}

func scanTripleRow(rows pgx.Rows) (*Record, error) {
	var (
		r         Record
		predicate string
		sourceRow int32
	)
	err := rows.Scan(
		&r.ID,
		&r.Triple.Subject,
		&r.Triple.SubjectID,
		&predicate,
		&r.Triple.Object,
		&r.Triple.ObjectID,
		&sourceRow,
		&r.Source,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning triple row: %w", err)
	}
	r.Triple.Predicate = triples.Predicate(predicate)
	r.Triple.SourceRow = int(sourceRow)
	return &r, nil
}
