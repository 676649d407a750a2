package async

import (
	"context"
	"time"

	"github.com/seatlens/seatlens/pkg/observability"
)

// SafeGo runs fn in a goroutine bounded by timeout. Panics are recovered and
// errors are logged under taskName. The returned channel is closed when fn
// has finished.
//
// Example:
//
//	async.SafeGo(ctx, logger, 10*time.Minute, "initial snapshot", func(ctx context.Context) error {
//	    return publisher.PublishAll(ctx, windows)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer observability.RecoverPanic(logger, taskName)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
	return done
}
