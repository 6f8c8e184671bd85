// Package storage persists workflow records in an embedded SQLite database.
//
// # Overview
//
// The store holds one primary table, workflows, keyed by filename, and a
// full-text shadow index, workflows_fts (FTS5), over the searchable text of
// every record: filename, name, description, integrations and tags. The shadow
// row of a record shares its rowid with the primary row's id.
//
// # Shadow Index Synchronization
//
// No SQL triggers are installed. Every write path keeps the shadow index in
// lockstep inside the same transaction as the primary write:
//
//   - insert: write the primary row, then insert its shadow row
//   - replace: delete the old shadow row, replace the primary row, insert the new shadow row
//   - delete: delete the shadow row, then the primary row
//
// At any quiescent point the shadow index is exactly ShadowProjection applied to
// every primary row. Verify checks this and Rebuild restores it.
//
// # Lifecycle
//
// A Store is opened once per process and closed at shutdown:
//
//	store, err := storage.Open(ctx, storage.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
// The database runs in WAL mode so searches proceed while an index run writes.
// Write transactions take the write lock up front (BEGIN IMMEDIATE) and wait on
// busy_timeout rather than failing when another writer holds it.
//
// # Querying
//
//	records, total, err := store.CountAndFetch(ctx, storage.Query{
//		Match:   `"slack"*`,
//		Filters: storage.Filters{Trigger: workflow.TriggerWebhook},
//		Limit:   20,
//	})
//
// An empty Match skips the full-text join and filters the primary table
// directly. The count and the fetch share one predicate builder and never share
// an argument list.
package storage
