package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Indexing metrics
	IndexRunsTotal   *prometheus.CounterVec
	IndexFilesTotal  *prometheus.CounterVec
	IndexRunDuration prometheus.Histogram
	IndexedRecords   prometheus.Gauge

	// Search metrics
	SearchRequestsTotal *prometheus.CounterVec
	SearchDuration      *prometheus.HistogramVec
	SearchResults       prometheus.Histogram

	// Cache metrics
	CacheRequestsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBWaitCount        prometheus.Gauge

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowindex_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowindex_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowindex_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		IndexRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowindex_index_runs_total",
				Help: "Total number of index runs",
			},
			[]string{"status"},
		),
		IndexFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowindex_index_files_total",
				Help: "Files seen by index runs, by outcome",
			},
			[]string{"result"},
		),
		IndexRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowindex_index_run_duration_seconds",
				Help:    "Index run duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		IndexedRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowindex_indexed_records",
				Help: "Number of records in the index after the last run",
			},
		),

		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowindex_search_requests_total",
				Help: "Total number of search requests",
			},
			[]string{"mode", "status"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowindex_search_duration_seconds",
				Help:    "Search duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"mode"},
		),
		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowindex_search_results",
				Help:    "Number of records returned per search page",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
		),

		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowindex_cache_requests_total",
				Help: "Search cache lookups by result",
			},
			[]string{"result"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowindex_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowindex_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowindex_db_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.IndexRunsTotal,
		m.IndexFilesTotal,
		m.IndexRunDuration,
		m.IndexedRecords,
		m.SearchRequestsTotal,
		m.SearchDuration,
		m.SearchResults,
		m.CacheRequestsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBWaitCount,
	)

	return m
}

// WithOTel mirrors index and search recordings to OpenTelemetry instruments
func (m *Metrics) WithOTel(om *OTelMetrics) *Metrics {
	m.otel = om
	return m
}

// IndexRun is the outcome of one index run as seen by metrics
type IndexRun struct {
	Processed int
	Skipped   int
	Errors    int
	Removed   int
	Records   int
	Duration  time.Duration
	Failed    bool
}

// RecordIndexRun records the outcome of an index run
func (m *Metrics) RecordIndexRun(run IndexRun) {
	if m == nil {
		return
	}
	status := "ok"
	if run.Failed {
		status = "error"
	}
	m.IndexRunsTotal.WithLabelValues(status).Inc()
	m.IndexRunDuration.Observe(run.Duration.Seconds())
	m.IndexFilesTotal.WithLabelValues("processed").Add(float64(run.Processed))
	m.IndexFilesTotal.WithLabelValues("skipped").Add(float64(run.Skipped))
	m.IndexFilesTotal.WithLabelValues("error").Add(float64(run.Errors))
	m.IndexFilesTotal.WithLabelValues("removed").Add(float64(run.Removed))
	if !run.Failed {
		m.IndexedRecords.Set(float64(run.Records))
	}
	if m.otel != nil {
		m.otel.RecordIndexRun(context.Background(), run)
	}
}

// RecordSearch records one search request
func (m *Metrics) RecordSearch(mode, status string, duration time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(mode, status).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if status == "ok" {
		m.SearchResults.Observe(float64(results))
	}
	if m.otel != nil {
		m.otel.RecordSearch(context.Background(), mode, status, duration)
	}
}

// RecordCache records a search cache lookup
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordDBStats copies connection pool statistics into gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// RecordHTTPRequest records one served HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status, size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, route).Observe(float64(size))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel uses the matched route template so that path variables do not
// explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			metrics.RecordHTTPRequest(r.Method, routeLabel(r), rw.statusCode, rw.bytesWritten, time.Since(start))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
