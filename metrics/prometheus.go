// Package metrics exposes Prometheus collectors for query execution.
// Recording functions are no-ops until Init is called, so library users who
// do not scrape metrics pay nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the prometheus collectors for query execution.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal  *prometheus.CounterVec
	rowsStreamed  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	connectionsActive prometheus.Gauge
}

// Default histogram buckets for query duration (in milliseconds).
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var m *Metrics

// Init initializes the metrics subsystem.
func Init(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	mm := &Metrics{
		registry: registry,

		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of executed queries",
			},
			[]string{"entity", "action", "status"},
		),
		rowsStreamed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_streamed_total",
				Help:      "Total number of rows delivered to consumers",
			},
			[]string{"entity"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_ms",
				Help:      "Query execution duration in milliseconds",
				Buckets:   buckets,
			},
			[]string{"entity", "action"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Read queries served from the result cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Read queries that missed the result cache",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently borrowed for an execution",
		}),
	}

	registry.MustRegister(
		mm.queriesTotal,
		mm.rowsStreamed,
		mm.queryDuration,
		mm.cacheHits,
		mm.cacheMisses,
		mm.connectionsActive,
	)

	m = mm
}

// ObserveQuery records one completed run.
func ObserveQuery(entityName, action, status string, d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(entityName, action, status).Inc()
	m.queryDuration.WithLabelValues(entityName, action).Observe(float64(d.Milliseconds()))
	if rows > 0 {
		m.rowsStreamed.WithLabelValues(entityName).Add(float64(rows))
	}
}

// CacheHit records a read served from the result cache.
func CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

// CacheMiss records a read the cache had to forward to the database.
func CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// ConnectionBorrowed marks the start of one execution on a connection.
func ConnectionBorrowed() {
	if m != nil {
		m.connectionsActive.Inc()
	}
}

// ConnectionReleased marks the end of one execution on a connection.
func ConnectionReleased() {
	if m != nil {
		m.connectionsActive.Dec()
	}
}

// Handler returns an HTTP handler serving the metrics registry.
func Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
