// Package api serves the workflow index over HTTP.
//
// Routes:
//
//	GET  /api/stats                          index statistics
//	GET  /api/workflows                      search (q, trigger, complexity, active_only, page, per_page)
//	GET  /api/workflows/{filename}           record metadata plus the raw document
//	GET  /api/workflows/{filename}/download  the document as an attachment
//	GET  /api/integrations                   integration usage counts
//	POST /api/reindex?force=                 start a background run (409 while one is running)
//	GET  /api/reindex                        whether a run is in progress and the last summary
//
// Health probes and /metrics are registered when a HealthChecker and a
// prometheus.Gatherer are supplied in Options.
//
//	server := api.NewServer(api.Options{
//		Search:       svc,
//		Indexer:      idx,
//		WorkflowsDir: cfg.Index.WorkflowsDir,
//		Logger:       logger,
//	})
//	http.ListenAndServe(cfg.Server.Addr(), server)
package api
