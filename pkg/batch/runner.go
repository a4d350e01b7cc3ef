package batch

import (
	"context"
	"log/slog"
	"sync"
)

// ItemFunc processes one batch item. The returned error marks the item
// as failed without stopping the batch.
type ItemFunc func(ctx context.Context, item string) error

// Runner fans batch items out to a bounded set of workers.
type Runner struct {
	workers int
	logger  *slog.Logger
}

// NewRunner creates a runner with the given worker count. Counts below
// one are clamped to one.
func NewRunner(workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		workers: workers,
		logger:  slog.Default().With("component", "batch.runner"),
	}
}

// Run processes items with bounded concurrency, recording per-item
// progress on the task. Workers stop pulling new items when the context
// is done or the task is cancelled; items already in flight finish.
// Run blocks until all workers return and leaves the task in a terminal
// state.
func (r *Runner) Run(ctx context.Context, task *Task, items []string, fn ItemFunc) {
	task.Start()

	work := make(chan string)
	var wg sync.WaitGroup

	workers := r.workers
	if workers > len(items) {
		workers = len(items)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				err := fn(ctx, item)
				if err != nil {
					r.logger.Warn("batch item failed", "task_id", task.ID(), "error", err)
				}
				task.Record(err == nil)
			}
		}()
	}

feed:
	for _, item := range items {
		if task.Cancelled() {
			break feed
		}
		select {
		case work <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	switch {
	case task.Cancelled():
		task.FinishCancelled()
		r.logger.Info("batch task cancelled", "task_id", task.ID())
	case ctx.Err() != nil:
		task.Fail(ctx.Err())
		r.logger.Warn("batch task aborted", "task_id", task.ID(), "error", ctx.Err())
	default:
		task.Finish()
		snap := task.Snapshot()
		r.logger.Info("batch task completed",
			"task_id", task.ID(),
			"processed", snap.Processed,
			"succeeded", snap.Succeeded,
			"failed", snap.Failed,
		)
	}
}
