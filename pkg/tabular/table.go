// Package tabular reads and writes the CSV tables the pipeline consumes and
// produces: resolution inputs with their pass columns, and triple sets.
//
// Files are written UTF-8 with a byte order mark so spreadsheet tools open
// them correctly. Input that is not valid UTF-8 is decoded as GBK.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Table is a CSV file held in memory. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable creates an empty table with the given header.
func NewTable(header ...string) *Table {
	t := &Table{Header: append([]string(nil), header...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) >= 0
}

// EnsureColumn appends the named column, empty in every row, if it does
// not exist yet, and returns its index.
func (t *Table) EnsureColumn(name string) int {
	if i := t.Column(name); i >= 0 {
		return i
	}
	t.Header = append(t.Header, name)
	t.index[name] = len(t.Header) - 1
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}

// Get returns the cell at row and the named column, or "" when the column
// does not exist.
func (t *Table) Get(row int, name string) string {
	i := t.Column(name)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes a cell, adding the column if needed.
func (t *Table) Set(row int, name, value string) {
	t.Rows[row][t.EnsureColumn(name)] = value
}

// Append adds a row. Missing trailing cells are filled with "".
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.Header))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Read parses a CSV table from r.
func Read(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return parse(raw)
}

// ReadFile parses the CSV table at path.
func ReadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	t, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func parse(raw []byte) (*Table, error) {
	raw = bytes.TrimPrefix(raw, bom)
	if !utf8.Valid(raw) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), raw)
		if err != nil {
			return nil, fmt.Errorf("decode GBK: %w", err)
		}
		raw = decoded
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: no header: %w", qerrors.ErrValidation)
	}

	t := NewTable(records[0]...)
	for _, rec := range records[1:] {
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		t.Append(rec...)
	}
	return t, nil
}

// Write encodes t as CSV to w, prefixed with a byte order mark.
func Write(w io.Writer, t *Table) error {
	if _, err := w.Write(bom); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// WriteFile writes t to path through a temp file in the same directory and
// a rename, so readers never see a partial file.
func WriteFile(path string, t *Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := Write(tmp, t); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
