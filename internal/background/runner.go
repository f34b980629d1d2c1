// Package background runs detached best-effort tasks, each bounded by its
// own deadline. Callers must not assume a task completed before shutdown;
// Close waits for in-flight tasks up to a grace period and then returns.
package background

import (
	"context"
	"sync"
	"time"

	"digestbot/pkg/logx"
)

type Runner struct {
	log logx.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	// cancel aborts all in-flight task contexts on Close.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(log logx.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{log: log, ctx: ctx, cancel: cancel}
}

// Go schedules fn on its own goroutine with the given deadline. Returns false
// when the runner is already closed. Panics inside fn are contained and
// logged; a task failure never affects other tasks.
func (r *Runner) Go(name string, deadline time.Duration, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx := r.ctx
		cancel := context.CancelFunc(func() {})
		if deadline > 0 {
			ctx, cancel = context.WithTimeout(ctx, deadline)
		}
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("background task panicked",
					logx.String("task", name), logx.Any("panic", rec))
			}
		}()

		if err := fn(ctx); err != nil {
			r.log.Warn("background task failed",
				logx.String("task", name), logx.Err(err))
		}
	}()
	return true
}

// Close stops accepting tasks and waits up to grace for in-flight ones.
// Tasks still running after the grace period are abandoned with their
// contexts cancelled.
func (r *Runner) Close(grace time.Duration) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		r.log.Warn("background tasks abandoned at shutdown", logx.Duration("grace", grace))
	}
	r.cancel()
}
