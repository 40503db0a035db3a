// Package background runs fire-and-forget side effects detached from the
// request that triggered them. Failures are logged and counted but never
// propagate back to the caller.
package background

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes tasks on their own goroutines with a fresh context so a
// task outlives the HTTP request that spawned it. A panic inside a task is
// recovered and logged instead of crashing the process.
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. timeout bounds each task's context; zero
// means no deadline.
func NewRunner(logger *zap.Logger, timeout time.Duration) *Runner {
	return &Runner{
		logger:  logger.Named("background"),
		timeout: timeout,
	}
}

// Go runs fn asynchronously. The task name is attached to error logs.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("background task panicked",
					zap.String("task", name),
					zap.Any("panic", p),
				)
			}
		}()

		ctx := context.Background()
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		if err := fn(ctx); err != nil {
			r.logger.Error("background task failed",
				zap.String("task", name),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until all in-flight tasks finish. Called during shutdown so
// pending webhook dispatches and metering writes can drain.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
