package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads a counter sample from reg; labels must match exactly.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			if assert.ObjectsAreEqual(labels, got) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch("search", StatusOK, 10*time.Millisecond)
	m.ObserveSearch("search", StatusError, time.Millisecond)
	m.StoreFailure("find")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.CounterIncrement("views", StatusOK)

	assert.Equal(t, 1.0, counterValue(t, reg, "promptmart_search_requests_total", map[string]string{"entry": "search", "status": StatusOK}))
	assert.Equal(t, 1.0, counterValue(t, reg, "promptmart_store_failures_total", map[string]string{"operation": "find"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "promptmart_cache_lookups_total", map[string]string{"result": "miss"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "promptmart_counter_increments_total", map[string]string{"counter": "views", "status": StatusOK}))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)

	a.StoreFailure("find")
	b.StoreFailure("find")
	assert.Equal(t, 2.0, counterValue(t, reg, "promptmart_store_failures_total", map[string]string{"operation": "find"}))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearch("search", StatusOK, time.Second)
		m.StoreFailure("find")
		m.CacheLookup(true)
		m.CounterIncrement("views", StatusOK)
		m.ImportItem("staging", StatusOK)
		m.ObserveHTTP("GET", "/health", "200", time.Second)
	})
}
