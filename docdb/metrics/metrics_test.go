package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateRegistries(t *testing.T) {
	a, b := New(nil), New(nil)
	a.RecordWrite("add")
	a.RecordWrite("add")
	b.RecordWrite("delete")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.RecordsWrittenTotal.WithLabelValues("add")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsWrittenTotal.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.RecordsWrittenTotal.WithLabelValues("delete")))
}

func TestRecordSearch(t *testing.T) {
	m := New(nil)
	m.RecordSearch("relevance", 3*time.Millisecond)
	m.RecordSearch("values", time.Millisecond)
	m.RecordLookup("table")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("relevance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("table")))

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "docdb_search_duration_seconds" {
			found = true
			assert.Equal(t, uint64(2), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}

func TestSharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.LockRetriesTotal.Inc()
	assert.Equal(t, 1, testutil.CollectAndCount(m.LockRetriesTotal))
	assert.NotNil(t, m.Gatherer())
	assert.Panics(t, func() { New(reg) })
}
