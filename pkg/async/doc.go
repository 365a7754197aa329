// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs fire-and-forget work with panic recovery, a timeout and structured
// logging taken from the caller's context:
//
//	async.SafeGo(r.Context(), 5*time.Second, "invalidate usage cache", func(ctx context.Context) error {
//		return store.Invalidate(ctx, "usage:"+userID)
//	})
//
// Batch fans a slice out over a bounded number of workers and collects every error:
//
//	errs := async.Batch(ctx, userIDs, 4, "retention purge", 30*time.Second, purge)
package async
