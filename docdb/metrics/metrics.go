// Package metrics provides the Prometheus collectors of a database handle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by a database handle.
type Metrics struct {
	SearchesTotal       *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	RecordsWrittenTotal *prometheus.CounterVec
	LockRetriesTotal    prometheus.Counter
	LookupsTotal        *prometheus.CounterVec
	ReindexedRecords    prometheus.Counter
	ReindexDuration     prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg gets a private registry,
// so that several handles in one process never collide.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, m.gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	factory := promauto.With(reg)

	m.SearchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdb_searches_total",
			Help: "Total number of searches by sort kind",
		},
		[]string{"sort"},
	)

	m.SearchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docdb_search_duration_seconds",
			Help:    "Duration of searches in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	m.RecordsWrittenTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdb_records_written_total",
			Help: "Total number of record writes by operation",
		},
		[]string{"op"},
	)

	m.LockRetriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_lock_retries_total",
			Help: "Total number of write lock retries",
		},
	)

	m.LookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdb_lookups_total",
			Help: "Total number of lookups by strategy",
		},
		[]string{"strategy"},
	)

	m.ReindexedRecords = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_reindexed_records_total",
			Help: "Total number of records rewritten by reindexing",
		},
	)

	m.ReindexDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docdb_reindex_duration_seconds",
			Help:    "Duration of full reindexing runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	return m
}

// Gatherer returns the registry the collectors live in, or nil when the
// caller's registerer cannot be gathered from.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// RecordSearch counts a search and its duration.
func (m *Metrics) RecordSearch(sort string, elapsed time.Duration) {
	m.SearchesTotal.WithLabelValues(sort).Inc()
	m.SearchDuration.Observe(elapsed.Seconds())
}

// RecordWrite counts a record write; op is "add", "update" or "delete".
func (m *Metrics) RecordWrite(op string) {
	m.RecordsWrittenTotal.WithLabelValues(op).Inc()
}

// RecordLookup counts a lookup.
func (m *Metrics) RecordLookup(strategy string) {
	m.LookupsTotal.WithLabelValues(strategy).Inc()
}
