package sessionlog

import (
	"os"
	"testing"
	"time"
)

func newTestLog(t *testing.T) *SessionLog {
	t.Helper()
	dir := t.TempDir()
	sl, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sl
}

func TestSessionLog_CreateAndAppend(t *testing.T) {
	sl := newTestLog(t)

	if err := sl.Create("s1", "user-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sl.Create("s1", "user-1"); err == nil {
		t.Fatal("Create() on existing session should fail with Conflict")
	}

	if err := sl.Append("s1", Event{Type: "agent.run.completed"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sl.Append("unknown", Event{Type: "x"}); err == nil {
		t.Fatal("Append() on unknown session should fail with NotFound")
	}

	result, err := sl.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("Load() events = %d, want 2 (created + agent.run.completed)", len(result.Events))
	}
	if result.Metadata.AgentRunCount != 1 {
		t.Fatalf("AgentRunCount = %v, want 1", result.Metadata.AgentRunCount)
	}
	if result.Metadata.MessageCount != 2 {
		t.Fatalf("MessageCount = %v, want 2", result.Metadata.MessageCount)
	}
}

func TestSessionLog_ArchiveOnCompletionEvent(t *testing.T) {
	sl := newTestLog(t)
	sl.Create("s1", "")
	sl.Append("s1", Event{Type: "session.completed"})

	result, err := sl.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Metadata.Status != StatusArchived {
		t.Fatalf("Status = %v, want %v", result.Metadata.Status, StatusArchived)
	}
	if result.Metadata.CompletedAt == nil {
		t.Fatal("CompletedAt not set after session.completed")
	}
}

func TestSessionLog_LoadSkipsMalformedLines(t *testing.T) {
	sl := newTestLog(t)
	sl.Create("s1", "")
	sl.Append("s1", Event{Type: "step"})

	f, err := os.OpenFile(sl.eventPath("s1"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	f.WriteString("not valid json\n")
	f.Close()

	result, err := sl.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.SkippedLines != 1 {
		t.Fatalf("SkippedLines = %v, want 1", result.SkippedLines)
	}
	if len(result.Events) != 2 {
		t.Fatalf("Events = %d, want 2 valid events despite corruption", len(result.Events))
	}
}

func TestSessionLog_IndexRebuildOnMissingIndex(t *testing.T) {
	dir := t.TempDir()
	sl, _ := New(dir, nil)
	sl.Create("s1", "user-x")
	sl.Append("s1", Event{Type: "agent.run.completed"})

	if err := os.Remove(sl.indexPath()); err != nil {
		t.Fatalf("remove index: %v", err)
	}

	rebuilt, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() after index removal: %v", err)
	}
	list := rebuilt.List()
	if len(list) != 1 {
		t.Fatalf("List() after rebuild = %d entries, want 1", len(list))
	}
	if list[0].SessionID != "s1" || list[0].UserID != "user-x" {
		t.Fatalf("rebuilt metadata = %+v, want session s1 / user-x", list[0])
	}
	if list[0].AgentRunCount != 1 {
		t.Fatalf("rebuilt AgentRunCount = %v, want 1", list[0].AgentRunCount)
	}
}

func TestSessionLog_CleanupRespectsKeepForeverAndActive(t *testing.T) {
	sl := newTestLog(t)
	sl.Create("old", "")
	sl.Create("kept", "")
	sl.Create("active", "")
	sl.KeepForever("kept", true)

	// Force distinguishable UpdatedAt ordering.
	sl.mu.Lock()
	sl.index["old"].UpdatedAt = time.Now().Add(-48 * time.Hour)
	sl.index["old"].Status = StatusArchived
	sl.index["kept"].UpdatedAt = time.Now().Add(-48 * time.Hour)
	sl.mu.Unlock()

	deleted, err := sl.Cleanup(CleanupOptions{MaxAge: time.Hour, KeepActive: true})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Cleanup() deleted = %v, want 1 (only 'old')", deleted)
	}
	list := sl.List()
	ids := map[string]bool{}
	for _, m := range list {
		ids[m.SessionID] = true
	}
	if ids["old"] {
		t.Fatal("'old' session should have been deleted")
	}
	if !ids["kept"] || !ids["active"] {
		t.Fatal("'kept' and 'active' sessions should survive cleanup")
	}
}

func TestSessionLog_Delete(t *testing.T) {
	sl := newTestLog(t)
	sl.Create("s1", "")
	if err := sl.Delete("s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := sl.Load("s1"); err == nil {
		t.Fatal("Load() after Delete() should fail with NotFound")
	}
	if err := sl.Delete("s1"); err == nil {
		t.Fatal("Delete() on already-deleted session should fail")
	}
}
