// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
// Logger wraps logrus. Servers log JSON, the CLI logs text:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("filename", name).WithError(err).Warn("Failed to analyze workflow")
//
// A logger travels in the context together with request and run ids:
//
//	ctx = observability.WithLogger(ctx, logger)
//	ctx = observability.WithRunID(ctx, runID)
//	observability.FromContext(ctx).Info("Index run started")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordSearch("fulltext", "ok", elapsed, len(records))
//
// A nil *Metrics is valid; every Record method is a no-op on it.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(store.DB(), redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:  true,
//		Endpoint: "otel-collector:4317",
//		Insecure: true,
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
