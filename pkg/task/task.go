// Package task defines the unit of work scheduled onto a LaneQueue lane.
//
// A Task mirrors a single Plan step once the Orchestrator hands it to the
// LaneQueue for execution. It carries the full state machine: pending ->
// queued -> running -> {completed|failed|cancelled}, with a retry edge
// running -> queued bounded by MaxRetries.
package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCancelled is the result error recorded for a task cancelled before or
// during execution.
var ErrCancelled = errors.New("task cancelled")

// State is the lifecycle state of a Task.
type State string

const (
	StatePending   State = "pending"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether s admits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Task is a schedulable unit of work on a lane.
//
// All mutation goes through the exported methods, which hold the internal
// lock; callers should treat a *Task as safe for concurrent use.
type Task struct {
	ID           string
	LaneKind     string
	Priority     int // 0..100, higher runs first
	Dependencies []string
	ParentTaskID string

	// Payload is the executor-specific work descriptor (e.g. a plan step).
	Payload any

	MaxRetries int

	CreatedAt   time.Time
	QueuedAt    time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu         sync.RWMutex
	state      State
	retryCount int
	result     any
	err        error

	cancel context.CancelFunc
	doneCh chan struct{} // closed exactly once terminal state is reached; guards I7
}

// New creates a pending Task. If id is empty a uuid is generated.
func New(id string, laneKind string, priority int, deps []string, payload any, maxRetries int) *Task {
	if id == "" {
		id = uuid.New().String()
	}
	return &Task{
		ID:           id,
		LaneKind:     laneKind,
		Priority:     priority,
		Dependencies: append([]string(nil), deps...),
		Payload:      payload,
		MaxRetries:   maxRetries,
		CreatedAt:    time.Now(),
		state:        StatePending,
		doneCh:       make(chan struct{}),
	}
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// RetryCount returns the number of retries attempted so far.
func (t *Task) RetryCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.retryCount
}

// Result returns the stored result and error, if any.
func (t *Task) Result() (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.err
}

// MarkQueued transitions pending|running -> queued.
func (t *Task) MarkQueued() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return
	}
	t.state = StateQueued
	t.QueuedAt = time.Now()
}

// MarkRunning transitions queued -> running and installs a cancellation
// context whose cancel func is released by Cancel.
func (t *Task) MarkRunning(ctx context.Context) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return ctx
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state = StateRunning
	t.StartedAt = time.Now()
	return runCtx
}

// MarkCompleted transitions running -> completed exactly once.
func (t *Task) MarkCompleted(result any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return
	}
	t.state = StateCompleted
	t.result = result
	t.CompletedAt = time.Now()
	t.finishLocked()
}

// MarkFailed transitions running -> failed exactly once.
func (t *Task) MarkFailed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return
	}
	t.state = StateFailed
	t.err = err
	t.CompletedAt = time.Now()
	t.finishLocked()
}

// RequeueForRetry transitions running -> queued and increments retryCount.
// Returns false if MaxRetries has been exhausted (caller should MarkFailed).
func (t *Task) RequeueForRetry() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return false
	}
	if t.retryCount >= t.MaxRetries {
		return false
	}
	t.retryCount++
	t.state = StateQueued
	t.QueuedAt = time.Now()
	return true
}

// Cancel idempotently flips the task to cancelled (repeated calls are
// no-ops and never emit a second terminal transition) and signals any
// running executor via the context installed by MarkRunning.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return
	}
	t.state = StateCancelled
	t.err = ErrCancelled
	t.CompletedAt = time.Now()
	if t.cancel != nil {
		t.cancel()
	}
	t.finishLocked()
}

// finishLocked closes doneCh exactly once. Caller must hold t.mu.
func (t *Task) finishLocked() {
	select {
	case <-t.doneCh:
	default:
		close(t.doneCh)
	}
}

// Done returns a channel closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doneCh
}

// DependenciesSatisfied reports whether every dependency id is marked
// completed, per the supplied lookup function.
func (t *Task) DependenciesSatisfied(isCompleted func(id string) bool) bool {
	for _, dep := range t.Dependencies {
		if !isCompleted(dep) {
			return false
		}
	}
	return true
}
