package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Task is the externally defined background work.
type Task func(ctx context.Context) error

// Runner runs a Task in-process while holding a wake lease. A signal that
// arrives while the lease is held is coalesced into the running task.
type Runner struct {
	task   Task
	lease  *semaphore.Weighted
	hold   time.Duration
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a runner whose lease expires after hold.
func NewRunner(task Task, hold time.Duration, logger *slog.Logger) *Runner {
	if hold <= 0 {
		hold = time.Minute
	}
	return &Runner{
		task:   task,
		lease:  semaphore.NewWeighted(1),
		hold:   hold,
		logger: logger.With("component", "BackgroundRunner"),
	}
}

func (r *Runner) SignalBackgroundStart(ctx context.Context) {
	if !r.lease.TryAcquire(1) {
		r.logger.Debug("Background task already running; signal coalesced")
		return
	}

	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.hold)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.lease.Release(1)
		defer cancel()
		if err := r.task(taskCtx); err != nil {
			r.logger.Warn("Background task finished with error", "err", err)
			return
		}
		r.logger.Debug("Background task finished")
	}()
}

// Wait blocks until the running task, if any, returns.
func (r *Runner) Wait() {
	r.wg.Wait()
}
