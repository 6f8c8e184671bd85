package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the indexing and search metrics as OpenTelemetry
// instruments for export through OTLP
type OTelMetrics struct {
	indexRuns      metric.Int64Counter
	indexFiles     metric.Int64Counter
	indexDuration  metric.Float64Histogram
	searchRequests metric.Int64Counter
	searchDuration metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/flowindex")

	m := &OTelMetrics{}
	var err error

	m.indexRuns, err = meter.Int64Counter(
		"flowindex.index.runs",
		metric.WithDescription("Total number of index runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create index runs counter: %w", err)
	}

	m.indexFiles, err = meter.Int64Counter(
		"flowindex.index.files",
		metric.WithDescription("Files seen by index runs, by outcome"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create index files counter: %w", err)
	}

	m.indexDuration, err = meter.Float64Histogram(
		"flowindex.index.duration",
		metric.WithDescription("Index run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create index duration histogram: %w", err)
	}

	m.searchRequests, err = meter.Int64Counter(
		"flowindex.search.requests",
		metric.WithDescription("Total number of search requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search requests counter: %w", err)
	}

	m.searchDuration, err = meter.Float64Histogram(
		"flowindex.search.duration",
		metric.WithDescription("Search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search duration histogram: %w", err)
	}

	return m, nil
}

// RecordIndexRun records one index run
func (m *OTelMetrics) RecordIndexRun(ctx context.Context, run IndexRun) {
	status := "ok"
	if run.Failed {
		status = "error"
	}
	m.indexRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.indexDuration.Record(ctx, run.Duration.Seconds())

	for result, n := range map[string]int{
		"processed": run.Processed,
		"skipped":   run.Skipped,
		"error":     run.Errors,
		"removed":   run.Removed,
	} {
		if n > 0 {
			m.indexFiles.Add(ctx, int64(n), metric.WithAttributes(attribute.String("result", result)))
		}
	}
}

// RecordSearch records one search request
func (m *OTelMetrics) RecordSearch(ctx context.Context, mode, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	m.searchRequests.Add(ctx, 1, attrs)
	m.searchDuration.Record(ctx, duration.Seconds(), attrs)
}
