// Package runtime implements the AgentRuntime base: the lifecycle,
// checkpointing, and tool-dispatch surface shared by every
// agent kind. The actual per-kind work (LLM calls, code generation,
// review) is supplied by the caller via Executor — this package owns
// only the state machine, event emission, and checkpoint plumbing
// around it.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evoagent/core/pkg/checkpoint"
	"github.com/evoagent/core/pkg/errs"
)

// ErrCancelled is the result error recorded for a run cancelled before or
// during execution.
var ErrCancelled = errors.New("run cancelled")

// State is a Run's lifecycle stage.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused"
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

// Executor performs the kind-specific work of a run. It should call
// run.Progress to report progress and honor ctx cancellation promptly.
type Executor func(ctx context.Context, run *Run, input any) (any, error)

// Run is one execution of an agent, carrying its lifecycle state, tool
// registry, and checkpoint integration.
type Run struct {
	ID    string
	Kind  string
	Input any

	mu        sync.Mutex
	state     State
	progress  float64
	startTime time.Time
	endTime   time.Time
	result    any
	err       error

	cancel context.CancelFunc
	pauseCh chan struct{} // closed to release a paused executor; replaced on pause
	doneCh  chan struct{}

	tools      *ToolRegistry
	events     *emitter
	checkpoint *checkpoint.Manager
	logger     *slog.Logger
}

// Config configures a Runtime.
type Config struct {
	Checkpoint *checkpoint.Manager
	Logger     *slog.Logger
}

// Runtime creates and tracks Runs.
type Runtime struct {
	mu   sync.Mutex
	runs map[string]*Run

	checkpoint *checkpoint.Manager
	logger     *slog.Logger
}

// New creates a Runtime. A nil cfg.Checkpoint disables checkpointing.
func New(cfg Config) *Runtime {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runtime{
		runs:       make(map[string]*Run),
		checkpoint: cfg.Checkpoint,
		logger:     cfg.Logger,
	}
}

// NewRun creates a pending Run. If id is empty a uuid is generated.
func (rt *Runtime) NewRun(id, kind string, input any) *Run {
	if id == "" {
		id = uuid.New().String()
	}
	run := &Run{
		ID:         id,
		Kind:       kind,
		Input:      input,
		state:      StatePending,
		tools:      NewToolRegistry(),
		events:     newEmitter(rt.logger),
		checkpoint: rt.checkpoint,
		logger:     rt.logger,
		doneCh:     make(chan struct{}),
	}
	rt.mu.Lock()
	rt.runs[id] = run
	rt.mu.Unlock()
	return run
}

// Get returns a tracked run by id.
func (rt *Runtime) Get(id string) (*Run, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	run, ok := rt.runs[id]
	if !ok {
		return nil, errs.NewNotFound("run %q not found", id)
	}
	return run, nil
}

// Tools returns the run's tool registry, for Register/SetPreCheck calls
// before Run starts.
func (run *Run) Tools() *ToolRegistry { return run.tools }

// Subscribe registers a lifecycle listener under id.
func (run *Run) Subscribe(id string, l Listener) { run.events.Subscribe(id, l) }

// Unsubscribe removes a previously registered listener.
func (run *Run) Unsubscribe(id string) { run.events.Unsubscribe(id) }

// State returns the run's current lifecycle state.
func (run *Run) State() State {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.state
}

// Result returns the stored result and error, valid once terminal.
func (run *Run) Result() (any, error) {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.result, run.err
}

// Done returns a channel closed when the run reaches a terminal state.
func (run *Run) Done() <-chan struct{} { return run.doneCh }

// Progress reports monotonic progress for the run, per invariant I3:
// progress is non-decreasing within a run except across an explicit
// RestoreFromCheckpoint.
func (run *Run) Progress(p float64) {
	run.mu.Lock()
	if p > run.progress {
		run.progress = p
	}
	progress := run.progress
	run.mu.Unlock()
	run.events.emit(Event{Type: EventProgress, RunID: run.ID, Timestamp: time.Now(), Progress: progress})
}

// Run executes fn synchronously, driving the pending -> running ->
// terminal transition and emitting start/complete/error events. Callers
// that want async execution should invoke it from their own goroutine
// (e.g. the LaneQueue's Executor or the Gateway's async dispatch).
func (run *Run) Run(ctx context.Context, fn Executor) (any, error) {
	run.mu.Lock()
	if run.state.IsTerminal() {
		run.mu.Unlock()
		result, err := run.result, run.err
		return result, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	run.cancel = cancel
	run.state = StateRunning
	run.startTime = time.Now()
	run.mu.Unlock()
	defer cancel()

	run.events.emit(Event{Type: EventStart, RunID: run.ID, Timestamp: time.Now()})

	result, err := fn(runCtx, run, run.Input)

	run.mu.Lock()
	if run.state.IsTerminal() {
		// Cancelled concurrently; terminal transition already recorded.
		run.mu.Unlock()
		return run.result, run.err
	}
	run.endTime = time.Now()
	if err != nil {
		run.state = StateFailed
		run.err = err
	} else {
		run.state = StateCompleted
		run.result = result
	}
	run.mu.Unlock()
	run.finish()

	if err != nil {
		run.events.emit(Event{Type: EventError, RunID: run.ID, Timestamp: time.Now(), Err: err})
		return nil, err
	}
	run.events.emit(Event{Type: EventComplete, RunID: run.ID, Timestamp: time.Now(), Data: map[string]any{"result": result}})
	return result, nil
}

// Pause transitions running -> paused. Only valid from running.
func (run *Run) Pause() error {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.state != StateRunning {
		return errs.NewPreconditionFailed("cannot pause run %q from state %q", run.ID, run.state)
	}
	run.state = StatePaused
	run.pauseCh = make(chan struct{})
	run.events.emit(Event{Type: EventPaused, RunID: run.ID, Timestamp: time.Now()})
	return nil
}

// Resume transitions paused -> running. Only valid from paused.
func (run *Run) Resume() error {
	run.mu.Lock()
	if run.state != StatePaused {
		run.mu.Unlock()
		return errs.NewPreconditionFailed("cannot resume run %q from state %q", run.ID, run.state)
	}
	run.state = StateRunning
	ch := run.pauseCh
	run.pauseCh = nil
	run.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	run.events.emit(Event{Type: EventResumed, RunID: run.ID, Timestamp: time.Now()})
	return nil
}

// WaitWhilePaused blocks until Resume is called or ctx is cancelled.
// Executors should call this at safe suspension points.
func (run *Run) WaitWhilePaused(ctx context.Context) error {
	run.mu.Lock()
	ch := run.pauseCh
	run.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel transitions any non-terminal state to cancelled and signals the
// executor's context. Idempotent: repeated calls are no-ops.
func (run *Run) Cancel() {
	run.mu.Lock()
	if run.state.IsTerminal() {
		run.mu.Unlock()
		return
	}
	run.state = StateCancelled
	run.err = ErrCancelled
	run.endTime = time.Now()
	if run.cancel != nil {
		run.cancel()
	}
	if run.pauseCh != nil {
		close(run.pauseCh)
		run.pauseCh = nil
	}
	run.mu.Unlock()
	run.finish()
	run.events.emit(Event{Type: EventCancelled, RunID: run.ID, Timestamp: time.Now()})
}

func (run *Run) finish() {
	select {
	case <-run.doneCh:
	default:
		close(run.doneCh)
	}
}

// CreateCheckpoint snapshots the run's current progress and opaque state.
func (run *Run) CreateCheckpoint(opaque map[string]any) (*checkpoint.State, error) {
	if run.checkpoint == nil {
		return nil, errs.NewPreconditionFailed("checkpointing is not configured for this runtime")
	}
	run.mu.Lock()
	progress := run.progress
	run.mu.Unlock()
	return run.checkpoint.Create(run.ID, progress, opaque)
}

// RestoreFromCheckpoint loads the run's checkpoint and applies its
// progress and opaque state, bypassing the monotonic-progress invariant
// for this one transition (I3's explicit exception).
func (run *Run) RestoreFromCheckpoint() (*checkpoint.State, error) {
	if run.checkpoint == nil {
		return nil, errs.NewPreconditionFailed("checkpointing is not configured for this runtime")
	}
	state, err := run.checkpoint.Restore(run.ID)
	if err != nil {
		return nil, err
	}
	run.mu.Lock()
	run.progress = state.Progress
	run.mu.Unlock()
	return state, nil
}
