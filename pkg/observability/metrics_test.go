package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)
		require.NotNil(t, metrics)

		metrics.RecordIndexRun(IndexRun{})
		metrics.RecordSearch("filter", "ok", time.Millisecond, 0)
		metrics.RecordCache(true)

		families, err := registry.Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})

	t.Run("panics on duplicate registration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)
		assert.Panics(t, func() { NewMetrics(registry) })
	})
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIndexRun(IndexRun{Processed: 1})
		m.RecordSearch("fulltext", "ok", time.Second, 3)
		m.RecordCache(false)
		m.RecordDBStats(sql.DBStats{})
		m.RecordHTTPRequest("GET", "/", 200, 10, time.Millisecond)
	})
}

func TestMetrics_RecordIndexRun(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordIndexRun(IndexRun{Processed: 3, Skipped: 5, Errors: 1, Removed: 2, Records: 7, Duration: time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexRunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexFilesTotal.WithLabelValues("processed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.IndexFilesTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexFilesTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexFilesTotal.WithLabelValues("removed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexedRecords))

	m.RecordIndexRun(IndexRun{Failed: true, Records: 0})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexRunsTotal.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexedRecords), "failed runs keep the last record count")
}

func TestMetrics_RecordSearchAndCache(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSearch("fulltext", "ok", 10*time.Millisecond, 4)
	m.RecordSearch("fulltext", "error", time.Millisecond, 0)
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequestsTotal.WithLabelValues("fulltext", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequestsTotal.WithLabelValues("fulltext", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues("miss")))
}

func TestMetrics_RecordDBStats(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordDBStats(sql.DBStats{OpenConnections: 4, InUse: 1, WaitCount: 9})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBConnectionsInUse))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.DBWaitCount))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/workflows/{filename}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})

	for _, name := range []string{"a.json", "b.json"} {
		req := httptest.NewRequest(http.MethodGet, "/api/workflows/"+name, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/workflows/{filename}", "404"))
	assert.Equal(t, 2.0, got, "requests should be labelled by route template")
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordCache(true)

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "flowindex_cache_requests_total"))
}
