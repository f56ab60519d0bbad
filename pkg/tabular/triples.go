package tabular

import (
	"fmt"
	"strconv"
	"strings"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/triples"
	"github.com/otherjamesbrown/qidlink/pkg/triples/extract"
)

// Triple table columns.
const (
	ColIndex     = "Index"
	ColSubject   = "Subject"
	ColSubjectID = "Subject QID"
	ColPredicate = "Predicate"
	ColObject    = "Object"
	ColObjectID  = "Object QID"
	ColSourceRow = "Source_Row"
)

// TripleHeader is the column order of written triple tables.
var TripleHeader = []string{ColIndex, ColSubject, ColSubjectID, ColPredicate, ColObject, ColObjectID, ColSourceRow}

// tripleAliases lists accepted alternative headers per column.
var tripleAliases = map[string][]string{
	ColIndex:     {"序号"},
	ColSubject:   {"主体 (Subject)"},
	ColSubjectID: {"主体 QID"},
	ColPredicate: {"谓语 (Predicate)"},
	ColObject:    {"客体 (Object)"},
	ColObjectID:  {"客体 QID"},
	ColSourceRow: {"Source_Raw"},
}

// noID marks an empty identifier cell in triple tables.
const noID = "/"

// TriplesTable renders ts as a table, numbering rows from 1. With
// displayPredicates set, predicates are written in their reader-facing form.
func TriplesTable(ts []triples.Triple, displayPredicates bool) *Table {
	t := NewTable(TripleHeader...)
	for i, tr := range ts {
		pred := string(tr.Predicate)
		if displayPredicates {
			pred = tr.Predicate.DisplayName()
		}
		t.Append(
			strconv.Itoa(i+1),
			tr.Subject,
			idCell(tr.SubjectID),
			pred,
			tr.Object,
			idCell(tr.ObjectID),
			strconv.Itoa(tr.SourceRow),
		)
	}
	return t
}

// ParseTriples reads triples from a table written by TriplesTable or by
// earlier tools using the alias headers. Display-form predicates are mapped
// back to the vocabulary.
func ParseTriples(t *Table) ([]triples.Triple, error) {
	cols := make(map[string]int, len(TripleHeader))
	for _, name := range TripleHeader {
		cols[name] = t.Column(name)
		for _, alias := range tripleAliases[name] {
			if cols[name] >= 0 {
				break
			}
			cols[name] = t.Column(alias)
		}
	}
	for _, required := range []string{ColSubject, ColPredicate, ColObject} {
		if cols[required] < 0 {
			return nil, fmt.Errorf("parse triples: missing column %q: %w", required, qerrors.ErrValidation)
		}
	}

	cell := func(row []string, name string) string {
		if i := cols[name]; i >= 0 {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	out := make([]triples.Triple, 0, t.Len())
	for _, row := range t.Rows {
		src, _ := strconv.Atoi(cell(row, ColSourceRow))
		out = append(out, triples.Triple{
			Subject:   cell(row, ColSubject),
			SubjectID: idValue(cell(row, ColSubjectID)),
			Predicate: triples.ParsePredicate(cell(row, ColPredicate)),
			Object:    cell(row, ColObject),
			ObjectID:  idValue(cell(row, ColObjectID)),
			SourceRow: src,
		})
	}
	return out, nil
}

func idCell(id string) string {
	if id == "" {
		return noID
	}
	return id
}

func idValue(cell string) string {
	if cell == noID {
		return ""
	}
	return cell
}

// Catalogue column names for title-format extraction.
const (
	ColTitle      = "Title_Description"
	ColTitleID    = "Title_QID"
	ColArtist     = "Artist"
	ColArtistID   = "Artist_QID"
	ColLocation   = "Location"
	ColLocationID = "Location_QID"
)

// Index column names for index-format extraction.
const (
	ColMainEntry     = "Index_Main Entry"
	ColSubEntry      = "Index_Sub-entry"
	ColDetail        = "Index_Detail"
	ColIndexLocation = "Index_Location"
)

// TitleRows reads catalogue rows for extraction.
func TitleRows(t *Table) ([]extract.Row, error) {
	if !t.HasColumn(ColTitle) {
		return nil, fmt.Errorf("title rows: missing column %q: %w", ColTitle, qerrors.ErrValidation)
	}
	rows := make([]extract.Row, t.Len())
	for i := range t.Rows {
		rows[i] = extract.Row{
			Index:      i + 1,
			Title:      cleanCell(t.Get(i, ColTitle)),
			TitleID:    idValue(cleanCell(t.Get(i, ColTitleID))),
			Artist:     cleanCell(t.Get(i, ColArtist)),
			ArtistID:   idValue(cleanCell(t.Get(i, ColArtistID))),
			Location:   cleanCell(t.Get(i, ColLocation)),
			LocationID: idValue(cleanCell(t.Get(i, ColLocationID))),
		}
	}
	return rows, nil
}

// IndexRows reads index rows for extraction.
func IndexRows(t *Table) ([]extract.IndexRow, error) {
	if !t.HasColumn(ColMainEntry) {
		return nil, fmt.Errorf("index rows: missing column %q: %w", ColMainEntry, qerrors.ErrValidation)
	}
	rows := make([]extract.IndexRow, t.Len())
	for i := range t.Rows {
		rows[i] = extract.IndexRow{
			Index:     i + 1,
			MainEntry: cleanCell(t.Get(i, ColMainEntry)),
			SubEntry:  cleanCell(t.Get(i, ColSubEntry)),
			Detail:    cleanCell(t.Get(i, ColDetail)),
			Location:  cleanCell(t.Get(i, ColIndexLocation)),
		}
	}
	return rows, nil
}

// cleanCell trims a cell and blanks spreadsheet placeholders for missing values.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}
