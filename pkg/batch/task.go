package batch

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a batch task.
type State string

const (
	// StatePending is a created task whose workers have not started yet.
	StatePending State = "pending"

	// StateRunning is a task with workers actively processing items.
	StateRunning State = "running"

	// StateCompleted is a task that processed every item.
	StateCompleted State = "completed"

	// StateCancelled is a task stopped early by a cancel request.
	StateCancelled State = "cancelled"

	// StateFailed is a task aborted by an unrecoverable error.
	StateFailed State = "failed"
)

// terminal reports whether the state admits no further transitions.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// ErrTaskNotFound is returned when a task id is unknown or already expired.
var ErrTaskNotFound = errors.New("batch task not found")

// Snapshot is a point-in-time view of a task, safe to serve to admin
// clients while workers keep mutating the task.
type Snapshot struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Task tracks the progress of one batch operation. All methods are safe
// for concurrent use.
type Task struct {
	id        string
	total     int
	createdAt time.Time

	mu         sync.Mutex
	state      State
	processed  int
	succeeded  int
	failed     int
	errMessage string
	finishedAt time.Time
	cancelled  bool

	now func() time.Time
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// Start moves the task from pending to running. Starting a task that is
// not pending is a no-op.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePending {
		t.state = StateRunning
	}
}

// Record counts one processed item.
func (t *Task) Record(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	if ok {
		t.succeeded++
	} else {
		t.failed++
	}
}

// Cancel requests cooperative cancellation. Workers observe the request
// between items; the task reaches the cancelled state only once they
// stop and call FinishCancelled. Cancelling a terminal task is a no-op
// and reported as false.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.terminal() {
		return false
	}
	t.cancelled = true
	return true
}

// Cancelled reports whether cancellation was requested.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Finish marks the task completed. The first terminal transition wins;
// later calls are ignored.
func (t *Task) Finish() { t.finish(StateCompleted, "") }

// FinishCancelled marks the task cancelled after its workers stopped.
func (t *Task) FinishCancelled() { t.finish(StateCancelled, "") }

// Fail marks the task failed with the given error.
func (t *Task) Fail(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.finish(StateFailed, msg)
}

func (t *Task) finish(state State, errMessage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.terminal() {
		return
	}
	t.state = state
	t.errMessage = errMessage
	t.finishedAt = t.now()
}

// Snapshot returns the current task state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:         t.id,
		State:      t.state,
		Total:      t.total,
		Processed:  t.processed,
		Succeeded:  t.succeeded,
		Failed:     t.failed,
		Error:      t.errMessage,
		CreatedAt:  t.createdAt,
		FinishedAt: t.finishedAt,
	}
}

// Registry holds live and recently finished tasks.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task

	retention time.Duration
	logger    *slog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// NewRegistry creates a task registry. Finished tasks remain queryable
// for the given retention window after expiry is scheduled.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[string]*Task),
		retention: retention,
		logger:    slog.Default().With("component", "batch.registry"),
		now:       time.Now,
	}
}

// CreateTask registers a new pending task over the given number of items.
func (r *Registry) CreateTask(total int) *Task {
	t := &Task{
		id:        newTaskID(),
		total:     total,
		createdAt: r.now(),
		state:     StatePending,
		now:       r.now,
	}

	r.mu.Lock()
	r.tasks[t.id] = t
	r.mu.Unlock()

	r.logger.Info("created batch task", "task_id", t.id, "total", total)
	return t
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// ExpireTask removes the task after the registry's retention window.
// It returns immediately; removal happens on a background timer.
func (r *Registry) ExpireTask(id string) {
	time.AfterFunc(r.retention, func() {
		r.remove(id)
	})
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	_, ok := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()
	if ok {
		r.logger.Debug("expired batch task", "task_id", id)
	}
}

// newTaskID returns a random identifier of the form "task-<hex>".
func newTaskID() string {
	id := uuid.New()
	return "task-" + hex.EncodeToString(id[:8])
}
