// Package search answers full-text, filtered and paginated queries over the
// workflow index.
//
// Free text is turned into an FTS5 match expression by BuildMatchExpression.
// User input never reaches the engine as syntax. Characters other than
// letters, combining marks, digits, double quotes, apostrophes and hyphens become spaces.
// Balanced double quotes form phrases and every remaining term is quoted and
// prefix-matched. All clauses are ANDed.
//
//	BuildMatchExpression(`email "daily report"`)
//	// "daily report" AND "email"*
//
// An input that sanitizes to nothing yields MatchAll, which queries the
// primary table without touching the shadow index.
//
// # Service
//
// Service validates filters, clamps pagination and delegates to the store:
//
//	svc := search.NewService(store, search.NewLRUCache(512, time.Minute), metrics)
//	resp, err := svc.Search(ctx, search.Request{
//		Query:   "slack",
//		Trigger: "webhook",
//		Page:    1,
//		PerPage: 20,
//	})
//
// Unknown trigger or complexity names fail with an indexerr.KindQuery error.
//
// # Caching
//
// Responses can be cached in process (LRUCache) or shared through Redis
// (RedisCache). The indexer calls Service.Invalidate after every run that
// changed the index.
package search
