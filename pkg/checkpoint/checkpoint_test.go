package checkpoint

import (
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManager_CreateAndRestore(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create("run-1", 0.5, map[string]any{"step": 2}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	state, err := m.Restore("run-1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if state.Progress != 0.5 {
		t.Fatalf("Progress = %v, want 0.5", state.Progress)
	}
	if state.Opaque["step"].(float64) != 2 {
		t.Fatalf("Opaque[step] = %v, want 2", state.Opaque["step"])
	}
}

func TestManager_CreateOverwritesPriorCheckpoint(t *testing.T) {
	m := newTestManager(t)
	m.Create("run-1", 0.1, nil)
	m.Create("run-1", 0.9, map[string]any{"done": true})

	state, err := m.Restore("run-1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if state.Progress != 0.9 {
		t.Fatalf("Progress = %v, want 0.9 (only one current checkpoint per run)", state.Progress)
	}
}

func TestManager_RestoreRefusesTerminalRun(t *testing.T) {
	m := newTestManager(t)
	m.Create("run-1", 1.0, nil)
	m.SetTerminalCheck(func(runID string) bool { return runID == "run-1" })

	if _, err := m.Restore("run-1"); err == nil {
		t.Fatal("Restore() on a terminal run should fail")
	}
}

func TestManager_RestoreRefusesExpiredCheckpoint(t *testing.T) {
	m, err := NewManager(Config{Dir: t.TempDir(), MaxAge: time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Create("run-1", 0.5, nil)
	time.Sleep(5 * time.Millisecond)

	if _, err := m.Restore("run-1"); err == nil {
		t.Fatal("Restore() on an expired checkpoint should fail")
	}
}

func TestManager_ClearRemovesCheckpoint(t *testing.T) {
	m := newTestManager(t)
	m.Create("run-1", 0.5, nil)
	if err := m.Clear("run-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := m.Restore("run-1"); err == nil {
		t.Fatal("Restore() after Clear() should fail with NotFound")
	}
}

func TestManager_RecoverOnStartupInvokesCallbackPerCheckpoint(t *testing.T) {
	m, err := NewManager(Config{Dir: t.TempDir(), AutoResume: true}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Create("run-a", 0.2, nil)
	m.Create("run-b", 0.4, nil)
	m.SetTerminalCheck(func(runID string) bool { return runID == "run-b" })

	var recovered []string
	m.SetResumeCallback(func(state *State) { recovered = append(recovered, state.RunID) })

	if err := m.RecoverOnStartup(); err != nil {
		t.Fatalf("RecoverOnStartup: %v", err)
	}
	if len(recovered) != 1 || recovered[0] != "run-a" {
		t.Fatalf("recovered = %v, want only run-a (run-b is terminal)", recovered)
	}
}
