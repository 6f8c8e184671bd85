// Package indexer keeps the workflow index in step with a directory of
// workflow documents.
//
// A run scans the directory, hashes every document, reanalyzes the ones whose
// fingerprint changed and upserts them. Analysis runs on a bounded pool of
// workers; all writes go through one writer goroutine. Documents that fail to
// read or parse are counted in the Summary and the run continues. Records whose
// document disappeared are removed at the end of the run when PruneMissing is
// set.
//
//	idx := indexer.New(store, indexer.Config{
//		WorkflowsDir: "workflows",
//		Workers:      4,
//		PruneMissing: true,
//	}, logger, metrics)
//	idx.OnChange(searchService.Invalidate)
//	summary, err := idx.IndexAll(ctx, false)
//
// Only one run happens at a time; IndexAll, IndexAsync and Prune return
// ErrIndexing while another is in progress. Trigger coalesces requests from
// the cron Scheduler and the file watcher into at most one follow-up run.
package indexer
