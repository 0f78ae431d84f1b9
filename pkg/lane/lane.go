// Package lane implements the LaneQueue scheduler: bounded concurrency
// lanes, each holding a priority-ordered queue, gated by task dependency
// completion and scheduled strictly by descending lane priority.
package lane

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/evoagent/core/pkg/errs"
	"github.com/evoagent/core/pkg/observability"
	"github.com/evoagent/core/pkg/task"
)

// Config describes one lane.
type Config struct {
	Kind          string
	MaxConcurrent int
	Priority      int // lane-level priority; higher scans first each pass
}

// Executor runs a task's payload and returns its result.
type Executor func(ctx context.Context, t *task.Task) (any, error)

// Metrics is a point-in-time snapshot for one lane.
type Metrics struct {
	Kind       string
	Running    int
	Pending    int
	AvgWait    time.Duration
	AvgExec    time.Duration
}

// LaneQueue schedules tasks across configured lanes.
type LaneQueue struct {
	mu          sync.Mutex
	lanes       []*laneState // sorted by descending Config.Priority
	byKind      map[string]*laneState
	tasks       map[string]*task.Task
	baseBackoff time.Duration
	pollEvery   time.Duration
	executor    Executor
	logger      *slog.Logger
	recorder    observability.Recorder

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// SetRecorder wires a metrics recorder that receives one observation per
// completed task and a depth update after every scheduling pass. Safe to
// call from any goroutine before the queue is used; nil disables recording.
func (lq *LaneQueue) SetRecorder(r observability.Recorder) {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	lq.recorder = r
}

// New builds a LaneQueue. executor runs a dequeued task; baseBackoff scales
// the retry delay. Per-error backoff multipliers are applied by the
// orchestrator before re-submitting, so the lane's own backoff is uniform.
func New(configs []Config, executor Executor, baseBackoff, pollEvery time.Duration, logger *slog.Logger) *LaneQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if pollEvery <= 0 {
		pollEvery = 5 * time.Millisecond
	}
	lq := &LaneQueue{
		byKind:      make(map[string]*laneState),
		tasks:       make(map[string]*task.Task),
		baseBackoff: baseBackoff,
		pollEvery:   pollEvery,
		executor:    executor,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, c := range configs {
		ls := newLaneState(c)
		lq.lanes = append(lq.lanes, ls)
		lq.byKind[c.Kind] = ls
	}
	sort.SliceStable(lq.lanes, func(i, j int) bool {
		return lq.lanes[i].cfg.Priority > lq.lanes[j].cfg.Priority
	})
	go lq.schedulerLoop()
	return lq
}

// Submit enqueues t onto its lane. The lane must have been configured.
func (lq *LaneQueue) Submit(t *task.Task) error {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	ls, ok := lq.byKind[t.LaneKind]
	if !ok {
		return errs.NewValidation("unknown lane kind %q", t.LaneKind)
	}
	lq.tasks[t.ID] = t
	t.MarkQueued()
	ls.push(t)
	return nil
}

// isCompletedLocked reports whether id names a task in a terminal completed
// state. Caller must hold lq.mu.
func (lq *LaneQueue) isCompletedLocked(id string) bool {
	t, ok := lq.tasks[id]
	if !ok {
		return false
	}
	return t.State() == task.StateCompleted
}

func (lq *LaneQueue) schedulerLoop() {
	defer close(lq.doneCh)
	ticker := time.NewTicker(lq.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-lq.stopCh:
			return
		case <-ticker.C:
			lq.runPass()
		}
	}
}

// runPass makes one scan across lanes by descending priority, starting every
// task whose lane has spare concurrency and whose dependencies are satisfied.
func (lq *LaneQueue) runPass() {
	lq.mu.Lock()
	var toStart []struct {
		ls *laneState
		t  *task.Task
	}
	for _, ls := range lq.lanes {
		for len(ls.running) < ls.cfg.MaxConcurrent {
			next := ls.popFirstReady(lq.isCompletedLocked)
			if next == nil {
				break
			}
			ls.running[next.ID] = next
			toStart = append(toStart, struct {
				ls *laneState
				t  *task.Task
			}{ls, next})
		}
	}
	recorder := lq.recorder
	depths := make(map[string][2]int, len(lq.lanes))
	for _, ls := range lq.lanes {
		depths[ls.cfg.Kind] = [2]int{len(ls.pending), len(ls.running)}
	}
	lq.mu.Unlock()

	if recorder != nil {
		for kind, d := range depths {
			recorder.SetLaneDepth(kind, d[0], d[1])
		}
	}

	for _, job := range toStart {
		go lq.run(job.ls, job.t)
	}
}

func (lq *LaneQueue) run(ls *laneState, t *task.Task) {
	wait := time.Since(t.QueuedAt)
	ctx := t.MarkRunning(context.Background())

	result, err := lq.executor(ctx, t)

	lq.mu.Lock()
	ls.recordWait(wait)
	delete(ls.running, t.ID)
	recorder := lq.recorder
	lq.mu.Unlock()

	if t.State().IsTerminal() {
		// Cancelled while running; executor result is discarded.
		return
	}

	if err != nil {
		if t.RequeueForRetry() {
			delay := lq.baseBackoff * time.Duration(t.RetryCount())
			lq.logger.Warn("task failed, retrying", "task_id", t.ID, "retry", t.RetryCount(), "delay", delay)
			time.AfterFunc(delay, func() {
				lq.mu.Lock()
				ls.push(t)
				lq.mu.Unlock()
			})
			return
		}
		t.MarkFailed(err)
		exec := time.Since(t.StartedAt)
		lq.mu.Lock()
		ls.recordExec(exec)
		lq.mu.Unlock()
		if recorder != nil {
			recorder.RecordLaneTask(ls.cfg.Kind, wait, exec, true)
		}
		return
	}

	t.MarkCompleted(result)
	exec := time.Since(t.StartedAt)
	lq.mu.Lock()
	ls.recordExec(exec)
	lq.mu.Unlock()
	if recorder != nil {
		recorder.RecordLaneTask(ls.cfg.Kind, wait, exec, false)
	}
}

// Cancel flips taskID to cancelled. Pending tasks are removed from their
// lane's queue; running tasks are signalled cooperatively via Task.Cancel.
func (lq *LaneQueue) Cancel(taskID string) bool {
	lq.mu.Lock()
	t, ok := lq.tasks[taskID]
	if !ok {
		lq.mu.Unlock()
		return false
	}
	ls := lq.byKind[t.LaneKind]
	ls.removePending(taskID)
	lq.mu.Unlock()

	t.Cancel()
	return true
}

// WaitFor blocks until taskID reaches a terminal state, ctx is cancelled, or
// timeout elapses.
func (lq *LaneQueue) WaitFor(ctx context.Context, taskID string, timeout time.Duration) (any, error) {
	lq.mu.Lock()
	t, ok := lq.tasks[taskID]
	lq.mu.Unlock()
	if !ok {
		return nil, errs.NewNotFound("task %q not found", taskID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.Done():
		return t.Result()
	case <-timer.C:
		return nil, errs.NewTimeout("waitFor task %q timed out after %s", taskID, timeout)
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Transient, "waitFor cancelled", ctx.Err())
	}
}

// Metrics returns a snapshot for every configured lane.
func (lq *LaneQueue) Metrics() []Metrics {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	out := make([]Metrics, 0, len(lq.lanes))
	for _, ls := range lq.lanes {
		out = append(out, Metrics{
			Kind:    ls.cfg.Kind,
			Running: len(ls.running),
			Pending: len(ls.pending),
			AvgWait: ls.avgWait(),
			AvgExec: ls.avgExec(),
		})
	}
	return out
}

// Stop terminates the scheduler loop.
func (lq *LaneQueue) Stop() {
	lq.stopOnce.Do(func() { close(lq.stopCh) })
	<-lq.doneCh
}
