package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// The task context is detached from parent's cancellation so work started by
// a request keeps running after the response is written; parent values such
// as the request id are kept.
func SafeGo(parent context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = observability.GetLogger(parent)
	}
	logger = logger.WithField("task", taskName)

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, "background task")

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

// ForEach calls fn for every item using at most workers goroutines. Unlike a
// plain errgroup it does not stop at the first failure: every item is
// attempted and all errors are returned joined.
func ForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) error {
	if workers < 1 {
		workers = 1
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if perr := observability.PanicError(recover()); perr != nil {
					err = perr
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fn(ctx, item)
		})
	}

	// Goroutines never return errors to the group, so Wait only blocks.
	_ = g.Wait()
	return errors.Join(errs...)
}
