package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/speechkit/practicehub/pkg/observability"
)

// SafeGo executes fn in a goroutine with panic recovery and a timeout.
//
// The task keeps the caller's context values (logger, request id) but not its
// cancellation, so work started from an HTTP handler outlives the request.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	logger := observability.FromContext(parentCtx).WithField("task", taskName)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Batch processes items with at most workers concurrent calls, each bounded by
// timeout. Unlike errgroup.Wait it returns every error, not only the first; a
// failing item does not cancel the others.
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, item := range items {
		if ctx.Err() != nil {
			record(fmt.Errorf("%s: %w", taskName, ctx.Err()))
			break
		}
		g.Go(func() (err error) {
			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			defer func() {
				if r := recover(); r != nil {
					record(fmt.Errorf("%s: panic: %v", taskName, r))
				}
			}()

			if err := fn(taskCtx, item); err != nil {
				record(err)
			}
			return nil
		})
	}

	g.Wait()
	return errs
}
