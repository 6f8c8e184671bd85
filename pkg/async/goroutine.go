package async

import (
	"context"
	"time"

	"github.com/platinummonkey/flowindex/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery, an optional timeout and
// error logging. The returned channel receives fn's result (a recovered panic
// becomes an error) and is then closed.
//
// Example:
//
//	done := SafeGo(ctx, logger, 10*time.Minute, "index run", func(ctx context.Context) error {
//	    _, err := idx.IndexAll(ctx, false)
//	    return err
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan error {
	if logger == nil {
		logger = observability.FromContext(parentCtx)
	}
	done := make(chan error, 1)

	go func() {
		defer close(done)

		var (
			ctx    context.Context
			cancel context.CancelFunc
		)
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
		} else {
			ctx, cancel = context.WithCancel(parentCtx)
		}
		defer cancel()

		defer observability.RecoverPanicWithCallback(logger, taskName, func(err error) {
			done <- err
		})

		err := fn(ctx)
		if err != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
		done <- err
	}()

	return done
}

// SafeGoNoError is like SafeGo for functions that don't return errors
func SafeGoNoError(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context)) <-chan error {
	return SafeGo(parentCtx, logger, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
