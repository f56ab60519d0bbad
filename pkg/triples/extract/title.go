// Package extract turns catalogue text into relation triples.
//
// Extraction is a fixed sequence of small rules over a shared state. Parse
// rules pull provenance, clauses, authors, places and dates out of the
// title; emit rules turn what was found into triples. Rules never fail: a
// rule that finds nothing leaves the state unchanged.
package extract

import (
	"github.com/otherjamesbrown/qidlink/pkg/triples"
)

// Row is one catalogue row. The ID fields carry known identifiers for the
// corresponding text fields and may be empty.
type Row struct {
	// Index is the 1-based data row number.
	Index      int
	Title      string
	TitleID    string
	Artist     string
	ArtistID   string
	Location   string
	LocationID string
}

type state struct {
	row        Row
	work       string
	provenance []string
	relations  []Relation
	info       TitleInfo
	embedded   string
	out        []triples.Triple
}

func (s *state) emit(subject, subjectID string, p triples.Predicate, object, objectID string) {
	if subject == "" || object == "" {
		return
	}
	s.out = append(s.out, triples.Triple{
		Subject:   subject,
		SubjectID: subjectID,
		Predicate: p,
		Object:    object,
		ObjectID:  objectID,
		SourceRow: s.row.Index,
	})
}

func (s *state) emitParts(head, headID string, info TitleInfo) {
	s.emit(head, headID, triples.CreatedBy, info.Author, "")
	s.emit(head, headID, triples.LocatedAt, info.Location, "")
	s.emit(head, headID, triples.PublicationDate, info.Date, "")
	s.emit(head, headID, triples.LocatedAt, info.AdLocation, "")
}

type rule func(*state)

// titleRules run in order. Title parts are emitted against the clean
// title before the embedded location narrows the work name further.
var titleRules = []rule{
	parseProvenance,
	parseComplexStructure,
	parseTitle,
	emitTitleParts,
	parseEmbeddedLocation,
	emitArtist,
	emitProvenance,
	emitEmbeddedLocation,
	emitLocationColumn,
	emitRelations,
}

// Extract returns the triples found in row. Rows without a title yield none.
func Extract(row Row) []triples.Triple {
	if row.Title == "" {
		return nil
	}
	s := &state{row: row, work: row.Title}
	for _, r := range titleRules {
		r(s)
	}
	return s.out
}

func parseProvenance(s *state) {
	if rest, parts, ok := Provenance(s.work); ok {
		s.work, s.provenance = rest, parts
	}
}

func parseComplexStructure(s *state) {
	s.work, s.relations = ComplexStructure(s.work)
}

func parseTitle(s *state) {
	s.info = DecomposeTitle(s.work)
	s.work = s.info.Clean
}

func emitTitleParts(s *state) {
	s.emitParts(s.work, s.row.TitleID, s.info)
}

func parseEmbeddedLocation(s *state) {
	if IsPreparatory(s.work) {
		return
	}
	if subject, loc, ok := EmbeddedLocation(s.work); ok && subject != "" {
		s.work, s.embedded = subject, loc
	}
}

func emitArtist(s *state) {
	s.emit(s.work, s.row.TitleID, triples.CreatedBy, s.row.Artist, s.row.ArtistID)
}

func emitProvenance(s *state) {
	if len(s.provenance) == 0 {
		return
	}
	owner := s.provenance[0]
	s.emit(s.work, s.row.TitleID, triples.OwnedBy, owner, "")
	if len(s.provenance) >= 2 {
		city := s.provenance[len(s.provenance)-1]
		s.emit(s.work, s.row.TitleID, triples.CurrentLocation, city, "")
		if owner != city {
			s.emit(owner, "", triples.LocatedAt, city, "")
		}
	}
}

func emitEmbeddedLocation(s *state) {
	s.emit(s.work, s.row.TitleID, triples.LocatedAt, s.embedded, "")
}

func emitLocationColumn(s *state) {
	parts := splitNonEmpty(s.row.Location, ",")
	if len(parts) == 0 {
		return
	}
	var id string
	if len(parts) == 1 {
		id = s.row.LocationID
	}
	s.emit(s.work, s.row.TitleID, triples.LocatedAt, parts[0], id)
	s.out = append(s.out, LocationChain(s.row.Location, s.row.Index)...)
}

// emitRelations links the work to each clause target and decomposes the
// target one level: its own author, place, date and embedded location.
func emitRelations(s *state) {
	for _, r := range s.relations {
		t := DecomposeTitle(r.Target)
		node := t.Clean
		s.emit(s.work, s.row.TitleID, r.Predicate, node, "")
		s.emitParts(node, "", t)
		if _, loc, ok := EmbeddedLocation(node); ok {
			s.emit(node, "", triples.LocatedAt, loc, "")
		}
	}
}
