package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunnerMixedResults(t *testing.T) {
	r := NewRegistry(time.Minute)
	items := []string{"cred-1", "cred-2", "cred-3", "cred-4", "cred-5"}
	task := r.CreateTask(len(items))

	failing := map[string]bool{"cred-2": true, "cred-4": true}
	NewRunner(3).Run(context.Background(), task, items, func(ctx context.Context, item string) error {
		if failing[item] {
			return errors.New("clear failed")
		}
		return nil
	})

	snap := task.Snapshot()
	if snap.State != StateCompleted {
		t.Errorf("State = %q, want completed", snap.State)
	}
	if snap.Processed != 5 || snap.Succeeded != 3 || snap.Failed != 2 {
		t.Errorf("counters = processed=%d succeeded=%d failed=%d, want 5/3/2",
			snap.Processed, snap.Succeeded, snap.Failed)
	}
}

func TestRunnerCancellation(t *testing.T) {
	r := NewRegistry(time.Minute)
	items := []string{"cred-1", "cred-2", "cred-3", "cred-4", "cred-5"}
	task := r.CreateTask(len(items))

	// Single worker so items process strictly in order. Cancel after the
	// second item; remaining items must never be attempted.
	var mu sync.Mutex
	var seen []string
	NewRunner(1).Run(context.Background(), task, items, func(ctx context.Context, item string) error {
		mu.Lock()
		seen = append(seen, item)
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			task.Cancel()
		}
		return nil
	})

	snap := task.Snapshot()
	if snap.State != StateCancelled {
		t.Errorf("State = %q, want cancelled", snap.State)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) > 3 {
		t.Errorf("processed %d items after cancel, want at most 3", len(seen))
	}
	if snap.Processed != len(seen) {
		t.Errorf("Processed = %d, want %d", snap.Processed, len(seen))
	}
}

func TestRunnerContextCancelled(t *testing.T) {
	r := NewRegistry(time.Minute)
	items := []string{"cred-1", "cred-2", "cred-3"}
	task := r.CreateTask(len(items))

	ctx, cancel := context.WithCancel(context.Background())
	NewRunner(1).Run(ctx, task, items, func(ctx context.Context, item string) error {
		cancel()
		return nil
	})

	snap := task.Snapshot()
	if snap.State != StateFailed {
		t.Errorf("State = %q, want failed", snap.State)
	}
	if snap.Error == "" {
		t.Error("Error empty, want context error message")
	}
}

func TestRunnerBoundedConcurrency(t *testing.T) {
	r := NewRegistry(time.Minute)
	items := make([]string, 20)
	for i := range items {
		items[i] = "cred"
	}
	task := r.CreateTask(len(items))

	var mu sync.Mutex
	inflight, peak := 0, 0
	NewRunner(3).Run(context.Background(), task, items, func(ctx context.Context, item string) error {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inflight--
		mu.Unlock()
		return nil
	})

	if peak > 3 {
		t.Errorf("peak concurrency = %d, want at most 3", peak)
	}
	if got := task.Snapshot().Processed; got != 20 {
		t.Errorf("Processed = %d, want 20", got)
	}
}

func TestRunnerEmptyItems(t *testing.T) {
	r := NewRegistry(time.Minute)
	task := r.CreateTask(0)

	NewRunner(4).Run(context.Background(), task, nil, func(ctx context.Context, item string) error {
		t.Error("item func called for empty batch")
		return nil
	})

	if got := task.Snapshot().State; got != StateCompleted {
		t.Errorf("State = %q, want completed", got)
	}
}
