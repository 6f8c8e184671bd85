// Package middleware holds HTTP middleware that needs state across requests.
//
// RateLimit applies a per-client token bucket; the API uses it to keep
// clients from queueing reindex runs back to back:
//
//	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
//		RequestsPerWindow: 6,
//		WindowDuration:    time.Minute,
//	})
//	limiter.StartCleanup(ctx)
//	router.Handle("/api/reindex", middleware.RateLimit(limiter)(handler))
package middleware
