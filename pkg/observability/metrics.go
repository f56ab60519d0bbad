package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a qidlink run.
type Metrics struct {
	// Lookup metrics
	LookupRequestsTotal *prometheus.CounterVec
	LookupLatency       *prometheus.HistogramVec
	LookupRetriesTotal  *prometheus.CounterVec
	CacheLookupsTotal   *prometheus.CounterVec

	// Resolution metrics
	RecordsTotal     *prometheus.CounterVec
	MatchScore       prometheus.Histogram
	CandidateQueries prometheus.Histogram

	// Triple metrics
	TriplesTotal *prometheus.CounterVec
}

// DefaultMetrics creates metrics registered on the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LookupRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qidlink_lookup_requests_total",
				Help: "Total HTTP requests made to the search services",
			},
			[]string{"capability", "status"},
		),
		LookupLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qidlink_lookup_latency_seconds",
				Help:    "Search service request latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"capability"},
		),
		LookupRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qidlink_lookup_retries_total",
				Help: "Total retried lookups by error code",
			},
			[]string{"capability", "code"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qidlink_cache_lookups_total",
				Help: "Query cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qidlink_records_total",
				Help: "Records processed by the resolution engine by outcome",
			},
			[]string{"outcome"},
		),
		MatchScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qidlink_match_score",
				Help:    "Best match score per resolved record",
				Buckets: []float64{40, 50, 60, 65, 70, 80, 90, 100, 110, 130},
			},
		),
		CandidateQueries: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qidlink_candidate_queries",
				Help:    "Number of candidate queries generated per record",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
			},
		),
		TriplesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qidlink_triples_total",
				Help: "Triples produced per stage",
			},
			[]string{"stage"},
		),
	}
}

// RecordLookup records one HTTP request to a search capability.
func (m *Metrics) RecordLookup(capability, status string, seconds float64) {
	if m == nil {
		return
	}
	m.LookupRequestsTotal.WithLabelValues(capability, status).Inc()
	m.LookupLatency.WithLabelValues(capability).Observe(seconds)
}

// RecordRetry records a retried request.
func (m *Metrics) RecordRetry(capability, code string) {
	if m == nil {
		return
	}
	m.LookupRetriesTotal.WithLabelValues(capability, code).Inc()
}

// RecordCache records a cache hit or miss.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordRecord records the outcome of resolving one record.
func (m *Metrics) RecordRecord(outcome string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordMatch records the winning score of a resolved record.
func (m *Metrics) RecordMatch(score float64) {
	if m == nil {
		return
	}
	m.MatchScore.Observe(score)
}

// RecordCandidates records how many queries were generated for a record.
func (m *Metrics) RecordCandidates(n int) {
	if m == nil {
		return
	}
	m.CandidateQueries.Observe(float64(n))
}

// RecordTriples records triples produced by a stage (extract, refine, dedup).
func (m *Metrics) RecordTriples(stage string, n int) {
	if m == nil {
		return
	}
	m.TriplesTotal.WithLabelValues(stage).Add(float64(n))
}
