package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evoagent/core/pkg/checkpoint"
)

func TestRun_CompletesSuccessfully(t *testing.T) {
	rt := New(Config{})
	run := rt.NewRun("", "codewriter", "do the thing")

	var started, completed bool
	run.Subscribe("test", func(e Event) {
		switch e.Type {
		case EventStart:
			started = true
		case EventComplete:
			completed = true
		}
	})

	result, err := run.Run(context.Background(), func(ctx context.Context, r *Run, input any) (any, error) {
		r.Progress(1.0)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != "ok" {
		t.Fatalf("result = %v, want ok", result)
	}
	if !started || !completed {
		t.Fatal("expected both start and complete events")
	}
	if run.State() != StateCompleted {
		t.Fatalf("State() = %v, want completed", run.State())
	}
}

func TestRun_FailurePropagatesAndEmitsError(t *testing.T) {
	rt := New(Config{})
	run := rt.NewRun("", "codewriter", nil)

	var sawError bool
	run.Subscribe("test", func(e Event) {
		if e.Type == EventError {
			sawError = true
		}
	})

	wantErr := errors.New("boom")
	_, err := run.Run(context.Background(), func(ctx context.Context, r *Run, input any) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if run.State() != StateFailed {
		t.Fatalf("State() = %v, want failed", run.State())
	}
	if !sawError {
		t.Fatal("expected an error event")
	}
}

func TestRun_PauseResumeBlocksExecutor(t *testing.T) {
	rt := New(Config{})
	run := rt.NewRun("", "codewriter", nil)

	reached := make(chan struct{})
	resumed := make(chan struct{})
	go func() {
		run.Run(context.Background(), func(ctx context.Context, r *Run, input any) (any, error) {
			close(reached)
			if err := r.WaitWhilePaused(ctx); err != nil {
				return nil, err
			}
			close(resumed)
			return "done", nil
		})
	}()

	<-reached
	time.Sleep(5 * time.Millisecond) // let Run() flip to running before Pause
	if err := run.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if run.State() != StatePaused {
		t.Fatalf("State() = %v, want paused", run.State())
	}

	select {
	case <-resumed:
		t.Fatal("executor should be blocked while paused")
	case <-time.After(20 * time.Millisecond):
	}

	if err := run.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("executor did not unblock after Resume")
	}
}

func TestRun_PauseFromPendingFails(t *testing.T) {
	rt := New(Config{})
	run := rt.NewRun("", "codewriter", nil)
	if err := run.Pause(); err == nil {
		t.Fatal("Pause() from pending should fail")
	}
}

func TestRun_CancelIsIdempotentAndSetsError(t *testing.T) {
	rt := New(Config{})
	run := rt.NewRun("", "codewriter", nil)

	count := 0
	run.Subscribe("test", func(e Event) {
		if e.Type == EventCancelled {
			count++
		}
	})

	run.Cancel()
	run.Cancel()

	if count != 1 {
		t.Fatalf("cancelled event count = %d, want 1", count)
	}
	_, err := run.Result()
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestRun_ToolCallDeniedByPreCheck(t *testing.T) {
	rt := New(Config{})
	run := rt.NewRun("", "codewriter", nil)
	run.Tools().Register(fakeTool{name: "shell"})
	run.Tools().SetPreCheck(func(ctx context.Context, runID, toolName string, params map[string]any) error {
		return errors.New("denied")
	})

	var toolResultErr error
	run.Subscribe("test", func(e Event) {
		if e.Type == EventToolResult {
			toolResultErr = e.Err
		}
	})

	_, err := run.Run(context.Background(), func(ctx context.Context, r *Run, input any) (any, error) {
		return r.executeToolCall(ctx, "shell", nil)
	})
	if err == nil {
		t.Fatal("expected tool call denial to fail the run")
	}
	if toolResultErr == nil {
		t.Fatal("expected a tool_result event carrying the denial error")
	}
}

func TestRun_CheckpointRoundTrip(t *testing.T) {
	mgr, err := checkpoint.NewManager(checkpoint.Config{Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	rt := New(Config{Checkpoint: mgr})
	run := rt.NewRun("run-1", "codewriter", nil)
	run.Progress(0.5)

	if _, err := run.CreateCheckpoint(map[string]any{"step": 3}); err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	run2 := rt.NewRun("run-1", "codewriter", nil)
	state, err := run2.RestoreFromCheckpoint()
	if err != nil {
		t.Fatalf("RestoreFromCheckpoint: %v", err)
	}
	if state.Progress != 0.5 {
		t.Fatalf("restored progress = %v, want 0.5", state.Progress)
	}
}

type fakeTool struct{ name string }

func (f fakeTool) Name() string { return f.name }
func (f fakeTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	return "executed", nil
}
