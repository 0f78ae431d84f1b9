package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTask_StateTransitions(t *testing.T) {
	tk := New("t1", "main", 50, nil, "payload", 2)
	if tk.State() != StatePending {
		t.Fatalf("State() = %v, want %v", tk.State(), StatePending)
	}

	tk.MarkQueued()
	if tk.State() != StateQueued {
		t.Fatalf("State() after MarkQueued = %v, want %v", tk.State(), StateQueued)
	}

	ctx := tk.MarkRunning(context.Background())
	if tk.State() != StateRunning {
		t.Fatalf("State() after MarkRunning = %v, want %v", tk.State(), StateRunning)
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("installed context already done: %v", err)
	}

	tk.MarkCompleted("ok")
	if tk.State() != StateCompleted {
		t.Fatalf("State() after MarkCompleted = %v, want %v", tk.State(), StateCompleted)
	}
	result, err := tk.Result()
	if result != "ok" || err != nil {
		t.Fatalf("Result() = (%v, %v), want (ok, nil)", result, err)
	}
}

func TestTask_TerminalIsIdempotent(t *testing.T) {
	tk := New("t1", "main", 0, nil, nil, 0)
	tk.MarkQueued()
	tk.MarkRunning(context.Background())
	tk.MarkCompleted("first")

	// A second terminal transition must be a no-op (I7).
	tk.MarkFailed(errors.New("too late"))
	if tk.State() != StateCompleted {
		t.Fatalf("State() = %v, want terminal state to stick at %v", tk.State(), StateCompleted)
	}
	result, err := tk.Result()
	if result != "first" || err != nil {
		t.Fatalf("Result() = (%v, %v), want (first, nil)", result, err)
	}

	select {
	case <-tk.Done():
	default:
		t.Fatal("Done() channel not closed after terminal transition")
	}
}

func TestTask_CancelIdempotent(t *testing.T) {
	tk := New("t1", "main", 0, nil, nil, 0)
	tk.MarkQueued()
	ctx := tk.MarkRunning(context.Background())

	tk.Cancel()
	tk.Cancel() // must not panic or double-close doneCh

	if tk.State() != StateCancelled {
		t.Fatalf("State() = %v, want %v", tk.State(), StateCancelled)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("run context not cancelled")
	}
	if _, err := tk.Result(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Result() error = %v, want ErrCancelled", err)
	}
}

func TestTask_RequeueForRetry(t *testing.T) {
	tk := New("t1", "main", 0, nil, nil, 1)
	tk.MarkQueued()
	tk.MarkRunning(context.Background())

	if !tk.RequeueForRetry() {
		t.Fatal("RequeueForRetry() = false, want true within MaxRetries")
	}
	if tk.State() != StateQueued || tk.RetryCount() != 1 {
		t.Fatalf("after first retry: state=%v retryCount=%v", tk.State(), tk.RetryCount())
	}

	tk.MarkRunning(context.Background())
	if tk.RequeueForRetry() {
		t.Fatal("RequeueForRetry() = true, want false once MaxRetries exhausted")
	}
}

func TestTask_DependenciesSatisfied(t *testing.T) {
	tk := New("t1", "main", 0, []string{"a", "b"}, nil, 0)
	completed := map[string]bool{"a": true}
	isCompleted := func(id string) bool { return completed[id] }

	if tk.DependenciesSatisfied(isCompleted) {
		t.Fatal("DependenciesSatisfied() = true, want false with b incomplete")
	}
	completed["b"] = true
	if !tk.DependenciesSatisfied(isCompleted) {
		t.Fatal("DependenciesSatisfied() = false, want true once all deps complete")
	}
}

func TestTask_DoneTimesOutWhilePending(t *testing.T) {
	tk := New("t1", "main", 0, nil, nil, 0)
	select {
	case <-tk.Done():
		t.Fatal("Done() closed before any terminal transition")
	case <-time.After(10 * time.Millisecond):
	}
}
