package lane

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/evoagent/core/pkg/task"
)

func waitAll(t *testing.T, lq *LaneQueue, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := lq.WaitFor(context.Background(), id, 2*time.Second); err != nil {
			t.Fatalf("WaitFor(%s) error: %v", id, err)
		}
	}
}

func TestLaneQueue_PriorityOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []string

	executor := func(_ context.Context, tk *task.Task) (any, error) {
		mu.Lock()
		order = append(order, tk.ID)
		mu.Unlock()
		return nil, nil
	}

	lq := New([]Config{{Kind: "main", MaxConcurrent: 1, Priority: 10}}, executor, 0, 20*time.Millisecond, nil)
	defer lq.Stop()

	low := task.New("low", "main", 1, nil, nil, 0)
	high := task.New("high", "main", 100, nil, nil, 0)
	if err := lq.Submit(low); err != nil {
		t.Fatalf("Submit(low): %v", err)
	}
	if err := lq.Submit(high); err != nil {
		t.Fatalf("Submit(high): %v", err)
	}

	waitAll(t, lq, "low", "high")

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("execution order = %v, want [high low]", order)
	}
}

func TestLaneQueue_FIFOTieBreak(t *testing.T) {
	var mu sync.Mutex
	var order []string

	executor := func(_ context.Context, tk *task.Task) (any, error) {
		mu.Lock()
		order = append(order, tk.ID)
		mu.Unlock()
		return nil, nil
	}

	lq := New([]Config{{Kind: "main", MaxConcurrent: 1, Priority: 10}}, executor, 0, 20*time.Millisecond, nil)
	defer lq.Stop()

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if err := lq.Submit(task.New(id, "main", 5, nil, nil, 0)); err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}
	waitAll(t, lq, ids...)

	mu.Lock()
	defer mu.Unlock()
	for i, id := range ids {
		if order[i] != id {
			t.Fatalf("execution order = %v, want %v", order, ids)
		}
	}
}

func TestLaneQueue_DependencyGating(t *testing.T) {
	var mu sync.Mutex
	aCompletedBeforeB := false
	aDone := false

	executor := func(_ context.Context, tk *task.Task) (any, error) {
		if tk.ID == "a" {
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			aDone = true
			mu.Unlock()
			return nil, nil
		}
		mu.Lock()
		aCompletedBeforeB = aDone
		mu.Unlock()
		return nil, nil
	}

	lq := New([]Config{{Kind: "main", MaxConcurrent: 2, Priority: 10}}, executor, 0, 5*time.Millisecond, nil)
	defer lq.Stop()

	b := task.New("b", "main", 50, []string{"a"}, nil, 0)
	a := task.New("a", "main", 1, nil, nil, 0)
	if err := lq.Submit(b); err != nil {
		t.Fatalf("Submit(b): %v", err)
	}
	if err := lq.Submit(a); err != nil {
		t.Fatalf("Submit(a): %v", err)
	}

	waitAll(t, lq, "a", "b")

	mu.Lock()
	defer mu.Unlock()
	if !aCompletedBeforeB {
		t.Fatal("b ran before its dependency a completed")
	}
}

func TestLaneQueue_RetryThenSucceed(t *testing.T) {
	var attempts int
	var mu sync.Mutex

	executor := func(_ context.Context, tk *task.Task) (any, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return nil, fmt.Errorf("transient failure")
		}
		return "done", nil
	}

	lq := New([]Config{{Kind: "main", MaxConcurrent: 1, Priority: 10}}, executor, 5*time.Millisecond, 5*time.Millisecond, nil)
	defer lq.Stop()

	tk := task.New("retry-me", "main", 0, nil, nil, 1)
	if err := lq.Submit(tk); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	result, err := lq.WaitFor(context.Background(), "retry-me", 2*time.Second)
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	if result != "done" {
		t.Fatalf("result = %v, want done", result)
	}
	if tk.State() != task.StateCompleted {
		t.Fatalf("State() = %v, want %v", tk.State(), task.StateCompleted)
	}
	if tk.RetryCount() != 1 {
		t.Fatalf("RetryCount() = %v, want 1", tk.RetryCount())
	}
}

func TestLaneQueue_RetryExhaustedFails(t *testing.T) {
	executor := func(_ context.Context, tk *task.Task) (any, error) {
		return nil, fmt.Errorf("always fails")
	}

	lq := New([]Config{{Kind: "main", MaxConcurrent: 1, Priority: 10}}, executor, time.Millisecond, 5*time.Millisecond, nil)
	defer lq.Stop()

	tk := task.New("doomed", "main", 0, nil, nil, 0)
	if err := lq.Submit(tk); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := lq.WaitFor(context.Background(), "doomed", 2*time.Second); err == nil {
		t.Fatal("WaitFor() returned nil error for a failed task")
	}
	if tk.State() != task.StateFailed {
		t.Fatalf("State() = %v, want %v", tk.State(), task.StateFailed)
	}
}

func TestLaneQueue_CancelPendingTask(t *testing.T) {
	executor := func(_ context.Context, tk *task.Task) (any, error) { return nil, nil }

	lq := New([]Config{{Kind: "main", MaxConcurrent: 1, Priority: 10}}, executor, 0, 5*time.Millisecond, nil)
	defer lq.Stop()

	blocker := task.New("blocker", "main", 100, []string{"never"}, nil, 0)
	if err := lq.Submit(blocker); err != nil {
		t.Fatalf("Submit(blocker): %v", err)
	}

	if !lq.Cancel("blocker") {
		t.Fatal("Cancel() = false, want true")
	}
	if blocker.State() != task.StateCancelled {
		t.Fatalf("State() = %v, want %v", blocker.State(), task.StateCancelled)
	}

	if _, err := lq.WaitFor(context.Background(), "blocker", time.Second); err == nil {
		t.Fatal("WaitFor() on cancelled task returned nil error")
	}
}

func TestLaneQueue_Metrics(t *testing.T) {
	executor := func(_ context.Context, tk *task.Task) (any, error) { return nil, nil }

	lq := New([]Config{{Kind: "main", MaxConcurrent: 1, Priority: 10}}, executor, 0, 5*time.Millisecond, nil)
	defer lq.Stop()

	tk := task.New("t1", "main", 0, nil, nil, 0)
	if err := lq.Submit(tk); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitAll(t, lq, "t1")

	metrics := lq.Metrics()
	if len(metrics) != 1 {
		t.Fatalf("Metrics() length = %v, want 1", len(metrics))
	}
	if metrics[0].Kind != "main" {
		t.Fatalf("Metrics()[0].Kind = %v, want main", metrics[0].Kind)
	}
}

// fakeRecorder captures the calls LaneQueue makes to an observability.Recorder
// without depending on the observability package's concrete types.
type fakeRecorder struct {
	mu        sync.Mutex
	taskCalls []string
	failed    []bool
	depths    map[string][2]int
}

func (f *fakeRecorder) RecordLaneTask(laneKind string, _, _ time.Duration, failed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskCalls = append(f.taskCalls, laneKind)
	f.failed = append(f.failed, failed)
}

func (f *fakeRecorder) SetLaneDepth(laneKind string, pending, running int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.depths == nil {
		f.depths = make(map[string][2]int)
	}
	f.depths[laneKind] = [2]int{pending, running}
}

func (f *fakeRecorder) RecordBusStats(int64, int64, int64, int64)                           {}
func (f *fakeRecorder) SetGatewayConnections(int)                                           {}
func (f *fakeRecorder) RecordGatewayRequest(string)                                         {}
func (f *fakeRecorder) RecordGatewayRateLimited()                                           {}
func (f *fakeRecorder) RecordSessionEvent(string)                                           {}
func (f *fakeRecorder) RecordHTTPRequest(string, string, int, time.Duration, int64, int64)  {}
func (f *fakeRecorder) RecordConsolidationRun(time.Duration, error)                         {}
func (f *fakeRecorder) RecordKnowledgeSearch(string, time.Duration, int)                    {}
func (f *fakeRecorder) Handler() http.Handler                                               { return nil }

func TestLaneQueue_RecordsToRecorder(t *testing.T) {
	executor := func(_ context.Context, tk *task.Task) (any, error) {
		if tk.ID == "bad" {
			return nil, fmt.Errorf("boom")
		}
		return nil, nil
	}

	lq := New([]Config{{Kind: "main", MaxConcurrent: 2, Priority: 10}}, executor, 0, 5*time.Millisecond, nil)
	defer lq.Stop()

	rec := &fakeRecorder{}
	lq.SetRecorder(rec)

	good := task.New("good", "main", 0, nil, nil, 0)
	bad := task.New("bad", "main", 0, nil, nil, 0)
	if err := lq.Submit(good); err != nil {
		t.Fatalf("Submit(good): %v", err)
	}
	if err := lq.Submit(bad); err != nil {
		t.Fatalf("Submit(bad): %v", err)
	}
	waitAll(t, lq, "good", "bad")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.taskCalls) != 2 {
		t.Fatalf("recorder saw %d task completions, want 2", len(rec.taskCalls))
	}
	sawFailure := false
	for _, f := range rec.failed {
		if f {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("recorder never saw a failed task")
	}
}
