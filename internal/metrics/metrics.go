package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusEmpty = "empty"
)

// Metrics holds the application's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Search pipeline metrics
	SearchRequestTotal *prometheus.CounterVec
	SearchDuration     *prometheus.HistogramVec
	StoreFailureTotal  *prometheus.CounterVec
	CacheLookupTotal   *prometheus.CounterVec

	// Counter increments (views, downloads)
	CounterIncrementTotal *prometheus.CounterVec

	// Catalog import
	ImportItemTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	defaultMu      sync.Mutex
)

// Default returns the process-wide Metrics registered with the default
// prometheus registry.
func Default() *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultMetrics == nil {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	}
	return defaultMetrics
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptmart_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptmart_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		SearchRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptmart_search_requests_total",
			Help: "Total number of searches by entry point and outcome",
		}, []string{"entry", "status"}),

		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptmart_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"entry"}),

		StoreFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptmart_store_failures_total",
			Help: "Record store failures hidden from callers",
		}, []string{"operation"}),

		CacheLookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptmart_cache_lookups_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}),

		CounterIncrementTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptmart_counter_increments_total",
			Help: "View and download increments by outcome",
		}, []string{"counter", "status"}),

		ImportItemTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptmart_import_items_total",
			Help: "Catalog import items by outcome",
		}, []string{"source", "status"}),
	}

	m.HTTPRequestTotal = registerOrGet(reg, m.HTTPRequestTotal).(*prometheus.CounterVec)
	m.HTTPRequestDuration = registerOrGet(reg, m.HTTPRequestDuration).(*prometheus.HistogramVec)
	m.SearchRequestTotal = registerOrGet(reg, m.SearchRequestTotal).(*prometheus.CounterVec)
	m.SearchDuration = registerOrGet(reg, m.SearchDuration).(*prometheus.HistogramVec)
	m.StoreFailureTotal = registerOrGet(reg, m.StoreFailureTotal).(*prometheus.CounterVec)
	m.CacheLookupTotal = registerOrGet(reg, m.CacheLookupTotal).(*prometheus.CounterVec)
	m.CounterIncrementTotal = registerOrGet(reg, m.CounterIncrementTotal).(*prometheus.CounterVec)
	m.ImportItemTotal = registerOrGet(reg, m.ImportItemTotal).(*prometheus.CounterVec)

	return m
}

// registerOrGet registers c, returning the existing collector if one with
// the same descriptor is already registered.
func registerOrGet(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// ObserveSearch records one search outcome.
func (m *Metrics) ObserveSearch(entry, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchRequestTotal.WithLabelValues(entry, status).Inc()
	m.SearchDuration.WithLabelValues(entry).Observe(elapsed.Seconds())
}

// StoreFailure counts a store error that was converted into a soft result.
func (m *Metrics) StoreFailure(operation string) {
	if m == nil {
		return
	}
	m.StoreFailureTotal.WithLabelValues(operation).Inc()
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupTotal.WithLabelValues(result).Inc()
}

// CounterIncrement counts a views/downloads increment attempt.
func (m *Metrics) CounterIncrement(counter, status string) {
	if m == nil {
		return
	}
	m.CounterIncrementTotal.WithLabelValues(counter, status).Inc()
}

// ImportItem counts one catalog import item.
func (m *Metrics) ImportItem(source, status string) {
	if m == nil {
		return
	}
	m.ImportItemTotal.WithLabelValues(source, status).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
