package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/evoagent/core/pkg/knowledge"
	"github.com/evoagent/core/pkg/sessionlog"
	"github.com/evoagent/core/pkg/vector"
)

func newTestLoop(t *testing.T, cfg Config) (*Loop, *sessionlog.SessionLog, *knowledge.Store) {
	t.Helper()
	sl, err := sessionlog.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("sessionlog.New: %v", err)
	}
	ks, err := knowledge.New(t.TempDir())
	if err != nil {
		t.Fatalf("knowledge.New: %v", err)
	}
	vs := vector.NewVectorStore(nil, nil)
	return New(cfg, sl, ks, vs, nil), sl, ks
}

func seedSuccessfulSession(t *testing.T, sl *sessionlog.SessionLog, id string, extra sessionlog.Event) {
	t.Helper()
	if err := sl.Create(id, "user-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sl.Append(id, sessionlog.Event{Type: "task.completed", SessionID: id}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sl.Append(id, extra); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestRunOnce_PromotesRecurringPattern(t *testing.T) {
	cfg := Config{MinAge: time.Nanosecond, MinSuccessRate: 0.5, MinOccurrences: 2}
	loop, sl, ks := newTestLoop(t, cfg)

	for i := 0; i < 3; i++ {
		id := "session-" + string(rune('a'+i))
		seedSuccessfulSession(t, sl, id, sessionlog.Event{
			Type:      "agent.note",
			SessionID: id,
			Data:      map[string]any{"text": "Fixed by adding a nil check before dereferencing the pointer."},
		})
	}

	created, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	items, err := ks.SearchByFilename("fixed")
	if err != nil {
		t.Fatalf("SearchByFilename: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected a promoted knowledge item")
	}
}

func TestRunOnce_SkipsBelowOccurrenceThreshold(t *testing.T) {
	cfg := Config{MinAge: time.Nanosecond, MinSuccessRate: 0.5, MinOccurrences: 5}
	loop, sl, _ := newTestLoop(t, cfg)

	seedSuccessfulSession(t, sl, "only-session", sessionlog.Event{
		Type:      "agent.note",
		SessionID: "only-session",
		Data:      map[string]any{"text": "Workaround: retry the request once."},
	})

	created, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 below threshold", created)
	}
}

func TestRunOnce_ExcludesLowSuccessRateSessions(t *testing.T) {
	cfg := Config{MinAge: time.Nanosecond, MinSuccessRate: 0.9, MinOccurrences: 1}
	loop, sl, _ := newTestLoop(t, cfg)

	if err := sl.Create("flaky", "user-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	sl.Append("flaky", sessionlog.Event{Type: "task.completed", SessionID: "flaky"})
	sl.Append("flaky", sessionlog.Event{Type: "task.failed", SessionID: "flaky"})
	sl.Append("flaky", sessionlog.Event{
		Type:      "agent.note",
		SessionID: "flaky",
		Data:      map[string]any{"text": "Decided to use Postgres for storage."},
	})

	created, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 for a session below the success-rate gate", created)
	}
}

func TestRunOnce_ExcludesSessionsYoungerThanMinAge(t *testing.T) {
	cfg := Config{MinAge: 24 * time.Hour, MinSuccessRate: 0.5, MinOccurrences: 1}
	loop, sl, _ := newTestLoop(t, cfg)
	seedSuccessfulSession(t, sl, "fresh", sessionlog.Event{
		Type:      "agent.note",
		SessionID: "fresh",
		Data:      map[string]any{"text": "Decided to use Postgres for storage."},
	})

	created, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 for a too-young session", created)
	}
}

func TestRunOnce_SkipsWhenSimilarItemAlreadyExists(t *testing.T) {
	cfg := Config{MinAge: time.Nanosecond, MinSuccessRate: 0.5, MinOccurrences: 1}
	loop, sl, ks := newTestLoop(t, cfg)

	slug := slugify("Decided to use Postgres for storage.")
	if err := ks.WriteManual(knowledge.Item{
		Category:    knowledge.CategoryDecisions,
		Slug:        slug,
		FrontMatter: knowledge.FrontMatter{Title: "Decided to use Postgres for storage.", ReflectorCanUpdate: false},
		Body:        "curated version",
	}); err != nil {
		t.Fatalf("WriteManual: %v", err)
	}

	seedSuccessfulSession(t, sl, "s1", sessionlog.Event{
		Type:      "agent.note",
		SessionID: "s1",
		Data:      map[string]any{"text": "Decided to use Postgres for storage."},
	})

	created, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 since a manual item already covers this title", created)
	}
}

func TestExtractCandidates_DetectsCodeFence(t *testing.T) {
	events := []sessionlog.Event{
		{Type: "agent.output", Data: map[string]any{"text": "```go\nfunc main() {}\n```"}},
	}
	candidates := extractCandidates("s1", events)
	found := false
	for _, c := range candidates {
		if c.Category == knowledge.CategoryPatterns {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a pattern candidate from a fenced code block")
	}
}

func TestAggregate_CountsOncePerSession(t *testing.T) {
	candidates := []candidate{
		{Category: knowledge.CategoryPits, Title: "nil pointer crash", SessionID: "a"},
		{Category: knowledge.CategoryPits, Title: "nil pointer crash", SessionID: "a"},
		{Category: knowledge.CategoryPits, Title: "nil pointer crash", SessionID: "b"},
	}
	agg := aggregate(candidates)
	if len(agg) != 1 || agg[0].Occurrences != 2 {
		t.Fatalf("aggregate() = %+v, want 1 candidate with 2 occurrences", agg)
	}
}
