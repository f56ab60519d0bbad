package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordLookup("wbsearchentities", "200", 0.2)
	m.RecordLookup("wbsearchentities", "200", 0.3)
	m.RecordRetry("opensearch", "rate_limit")
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)
	m.RecordRecord("resolved")
	m.RecordTriples("extract", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LookupRequestsTotal.WithLabelValues("wbsearchentities", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupRetriesTotal.WithLabelValues("opensearch", "rate_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("resolved")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TriplesTotal.WithLabelValues("extract")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLookup("x", "200", 1)
		m.RecordRetry("x", "timeout")
		m.RecordCache(true)
		m.RecordRecord("failed")
		m.RecordMatch(70)
		m.RecordCandidates(3)
		m.RecordTriples("refine", 1)
	})
}

func TestTracer_NoopProvider(t *testing.T) {
	tr := NewTracer()
	ctx, span := tr.StartResolveSpan(context.Background(), 3, "Person")
	defer span.End()

	h := NewSpanHelper(span)
	assert.NotPanics(t, func() {
		h.SetSearchResult(true, 2)
		h.SetResolution("Q1", "High", 95)
		h.SetError(errors.New("boom"), "timeout", true)
		h.SetSuccess()
	})
	assert.Empty(t, GetTraceID(ctx))
}
