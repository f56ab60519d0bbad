// Package facts downloads the statements of resolved entities and writes
// them as one JSON document per entity.
//
// Identifiers are fetched in batches. Each completed batch is appended to
// the output and recorded in a checkpoint, so a rerun continues with the
// first batch that did not finish.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/otherjamesbrown/qidlink/pkg/checkpoint"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/lookup"
	"github.com/otherjamesbrown/qidlink/pkg/tabular"
)

// DefaultBatchSize is the number of identifiers per query.
const DefaultBatchSize = 50

// DefaultIDColumn holds the identifiers in a facts input table.
const DefaultIDColumn = "Original-QID"

const (
	directClaimPrefix = "/prop/direct/"
	labelProperty     = "http://www.w3.org/2000/01/rdf-schema#label"
	descProperty      = "http://schema.org/description"
	dateTimeType      = "http://www.w3.org/2001/XMLSchema#dateTime"
)

// Querier fetches raw statement rows for a set of identifiers.
type Querier interface {
	QueryEntityClaims(ctx context.Context, ids []string) ([]lookup.Binding, error)
}

// PropertyValue is one value of a direct claim.
type PropertyValue struct {
	Value string `json:"value"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// Metadata describes where and when an entity document was produced.
type Metadata struct {
	ExtractedAt time.Time `json:"extracted_at"`
	Source      string    `json:"source"`
}

// Entity is the document written for one identifier.
type Entity struct {
	ID                 string                     `json:"id"`
	PrimaryLabel       string                     `json:"primary_label,omitempty"`
	PrimaryDescription string                     `json:"primary_description,omitempty"`
	Labels             map[string]string          `json:"labels"`
	Descriptions       map[string]string          `json:"descriptions"`
	Properties         map[string][]PropertyValue `json:"properties"`
	DatasetInfo        map[string]string          `json:"dataset_info,omitempty"`
	Metadata           Metadata                   `json:"metadata"`
}

// Summary counts the work done by a run.
type Summary struct {
	Total         int `json:"total"`
	AlreadyDone   int `json:"already_done"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Entities      int `json:"entities"`
}

// Fetcher runs batched fact downloads.
type Fetcher struct {
	querier   Querier
	tracker   *checkpoint.Tracker
	logger    logging.Logger
	batchSize int
	now       func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithClock sets the time source used for extraction timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a fetcher writing progress to tracker.
func NewFetcher(q Querier, tracker *checkpoint.Tracker, opts ...Option) *Fetcher {
	f := &Fetcher{
		querier:   q,
		tracker:   tracker,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logging.MustGlobal()
	}
	f.logger = f.logger.With(logging.F("component", "facts"))
	return f
}

// Run fetches every identifier not yet in the checkpoint and writes one
// JSON line per entity to w. info supplies the input row of each
// identifier for the dataset_info field. A failed batch is logged and left
// out of the checkpoint so the next run retries it; a batch that returns no
// rows is recorded as done.
func (f *Fetcher) Run(ctx context.Context, ids []string, info map[string]map[string]string, w io.Writer) (*Summary, error) {
	pending := f.tracker.Pending(ids)
	sum := &Summary{Total: len(ids), AlreadyDone: len(ids) - len(pending)}
	f.logger.Info("Fetching facts",
		logging.F("total", len(ids)),
		logging.F("remaining", len(pending)),
	)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for start := 0; start < len(pending); start += f.batchSize {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		end := min(start+f.batchSize, len(pending))
		batch := pending[start:end]
		sum.Batches++

		bindings, err := f.querier.QueryEntityClaims(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.FailedBatches++
			f.logger.Warn("Batch failed",
				logging.F("first", batch[0]),
				logging.F("size", len(batch)),
				logging.Err(err),
			)
			continue
		}
		if len(bindings) == 0 {
			f.logger.Warn("No results for batch", logging.F("first", batch[0]))
		}

		entities := Group(bindings, info, f.now().UTC())
		for _, e := range entities {
			if err := enc.Encode(e); err != nil {
				return sum, fmt.Errorf("write entity %s: %w", e.ID, err)
			}
		}
		if err := f.tracker.Mark(ctx, batch...); err != nil {
			return sum, err
		}
		sum.Entities += len(entities)
		f.logger.Info("Saved batch",
			logging.F("batch", sum.Batches),
			logging.F("entities", len(entities)),
			logging.F("processed", sum.AlreadyDone+end),
		)
	}
	return sum, nil
}

// Group folds statement rows into entity documents, in the order each
// entity first appears.
func Group(bindings []lookup.Binding, info map[string]map[string]string, at time.Time) []*Entity {
	byID := make(map[string]*Entity)
	var order []*Entity

	for _, b := range bindings {
		item, ok := b["item"]
		if !ok {
			continue
		}
		id := lastSegment(item.Value)
		e, ok := byID[id]
		if !ok {
			e = &Entity{
				ID:           id,
				Labels:       make(map[string]string),
				Descriptions: make(map[string]string),
				Properties:   make(map[string][]PropertyValue),
				DatasetInfo:  info[id],
				Metadata:     Metadata{ExtractedAt: at, Source: "Wikidata"},
			}
			byID[id] = e
			order = append(order, e)
		}

		if v, ok := b["itemLabel"]; ok {
			e.PrimaryLabel = v.Value
		}
		if v, ok := b["itemDescription"]; ok {
			e.PrimaryDescription = v.Value
		}

		p, o := b["p"], b["o"]
		value := o.Value
		if o.Type == "literal" && o.Datatype == dateTimeType {
			value = strings.TrimPrefix(value, "+")
		}

		switch {
		case strings.Contains(p.Value, directClaimPrefix):
			pv := PropertyValue{Value: value, Type: o.Type}
			if label, ok := b["oLabel"]; ok && label.Value != value {
				pv.Label = label.Value
			}
			pid := lastSegment(p.Value)
			e.Properties[pid] = append(e.Properties[pid], pv)
		case p.Value == labelProperty:
			e.Labels[langOrUnknown(o.Language)] = value
		case p.Value == descProperty:
			e.Descriptions[langOrUnknown(o.Language)] = value
		}
	}
	return order
}

// IDsFromTable returns the distinct identifiers in column, in row order,
// with each identifier's row keyed by header. Cells that are not item
// identifiers are ignored.
func IDsFromTable(t *tabular.Table, column string) ([]string, map[string]map[string]string) {
	var ids []string
	info := make(map[string]map[string]string)
	for i := range t.Rows {
		id := strings.TrimSpace(t.Get(i, column))
		if !strings.HasPrefix(id, "Q") {
			continue
		}
		if _, seen := info[id]; seen {
			continue
		}
		row := make(map[string]string, len(t.Header))
		for j, h := range t.Header {
			row[h] = t.Rows[i][j]
		}
		info[id] = row
		ids = append(ids, id)
	}
	return ids, info
}

func lastSegment(uri string) string {
	return uri[strings.LastIndex(uri, "/")+1:]
}

func langOrUnknown(lang string) string {
	if lang == "" {
		return "unknown"
	}
	return lang
}
