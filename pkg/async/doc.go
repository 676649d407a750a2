// Package async runs background work with panic recovery and a deadline.
//
//	done := async.SafeGo(ctx, logger, time.Minute, "refresh", func(ctx context.Context) error {
//		return refresh(ctx)
//	})
//	<-done
package async
