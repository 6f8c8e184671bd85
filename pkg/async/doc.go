// Package async runs background tasks with panic recovery, timeouts and
// structured error logging.
//
//	done := async.SafeGo(ctx, logger, 10*time.Minute, "index run", func(ctx context.Context) error {
//		return run(ctx)
//	})
//	err := <-done
//
// Callers that don't care about the outcome can drop the returned channel; it
// is buffered so the goroutine never blocks on it.
package async
