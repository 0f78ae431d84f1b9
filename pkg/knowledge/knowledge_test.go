package knowledge

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStore_WriteAutoThenRead(t *testing.T) {
	s := newTestStore(t)
	written, err := s.WriteAuto(Item{
		Category:    CategoryPits,
		Slug:        "nil-pointer",
		FrontMatter: FrontMatter{Title: "Nil pointer crash", Tags: []string{"go", "nil"}},
		Body:        "Calling Foo() before Init() panics.",
	})
	if err != nil {
		t.Fatalf("WriteAuto: %v", err)
	}
	if !written {
		t.Fatal("WriteAuto() = false, want true on first write")
	}

	item, err := s.Read(CategoryPits, "nil-pointer")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if item.Source != SourceAuto {
		t.Fatalf("Source = %v, want auto", item.Source)
	}
	if item.FrontMatter.Title != "Nil pointer crash" {
		t.Fatalf("Title = %q", item.FrontMatter.Title)
	}
	if item.Body != "Calling Foo() before Init() panics.\n" {
		t.Fatalf("Body = %q", item.Body)
	}
}

func TestStore_ManualPrecedenceOverAuto(t *testing.T) {
	s := newTestStore(t)
	s.WriteAuto(Item{Category: CategoryPatterns, Slug: "retry", FrontMatter: FrontMatter{Title: "auto version"}, Body: "auto body"})
	if err := s.WriteManual(Item{Category: CategoryPatterns, Slug: "retry", FrontMatter: FrontMatter{Title: "manual version"}, Body: "manual body"}); err != nil {
		t.Fatalf("WriteManual: %v", err)
	}

	item, err := s.Read(CategoryPatterns, "retry")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if item.Source != SourceManual || item.FrontMatter.Title != "manual version" {
		t.Fatalf("Read() = %+v, want manual version", item)
	}

	written, err := s.WriteAuto(Item{Category: CategoryPatterns, Slug: "retry", FrontMatter: FrontMatter{Title: "auto attempt 2"}, Body: "ignored"})
	if err != nil {
		t.Fatalf("WriteAuto: %v", err)
	}
	if written {
		t.Fatal("WriteAuto() should be skipped once a manual item exists")
	}
}

func TestStore_PromoteToManual(t *testing.T) {
	s := newTestStore(t)
	s.WriteAuto(Item{Category: CategoryDecisions, Slug: "choose-postgres", FrontMatter: FrontMatter{Title: "Chose Postgres"}, Body: "body"})

	if err := s.PromoteToManual(CategoryDecisions, "choose-postgres"); err != nil {
		t.Fatalf("PromoteToManual: %v", err)
	}
	if s.exists(SourceAuto, CategoryDecisions, "choose-postgres") {
		t.Fatal("auto copy should be removed after promotion")
	}
	item, err := s.Read(CategoryDecisions, "choose-postgres")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if item.Source != SourceManual {
		t.Fatalf("Source = %v, want manual after promotion", item.Source)
	}
}

func TestStore_LockPreventsFutureReflectorUpdate(t *testing.T) {
	s := newTestStore(t)
	s.WriteAuto(Item{Category: CategorySolutions, Slug: "fix-timeout", FrontMatter: FrontMatter{Title: "Fix timeout", ReflectorCanUpdate: true}, Body: "body"})

	if err := s.Lock(SourceAuto, CategorySolutions, "fix-timeout"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	item, err := s.readFrom(SourceAuto, CategorySolutions, "fix-timeout")
	if err != nil {
		t.Fatalf("readFrom: %v", err)
	}
	if item.FrontMatter.ReflectorCanUpdate {
		t.Fatal("ReflectorCanUpdate should be false after Lock")
	}
}

func TestStore_DeleteNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete(SourceAuto, CategoryPits, "missing"); err == nil {
		t.Fatal("Delete() on missing item should fail")
	}
}

func TestStore_SearchByFilename(t *testing.T) {
	s := newTestStore(t)
	s.WriteAuto(Item{Category: CategoryPits, Slug: "nil-pointer-crash", FrontMatter: FrontMatter{Title: "Nil pointer"}, Body: "x"})
	s.WriteAuto(Item{Category: CategoryPatterns, Slug: "retry-backoff", FrontMatter: FrontMatter{Title: "Retry with backoff"}, Body: "y"})

	results, err := s.SearchByFilename("retry")
	if err != nil {
		t.Fatalf("SearchByFilename: %v", err)
	}
	if len(results) != 1 || results[0].Slug != "retry-backoff" {
		t.Fatalf("SearchByFilename(retry) = %+v", results)
	}
}

func TestStore_SearchByContentWeightsTitleOverBody(t *testing.T) {
	s := newTestStore(t)
	s.WriteAuto(Item{
		Category:    CategoryPits,
		Slug:        "title-hit",
		FrontMatter: FrontMatter{Title: "deadlock in scheduler"},
		Body:        "unrelated body",
	})
	s.WriteAuto(Item{
		Category:    CategoryPits,
		Slug:        "body-hit",
		FrontMatter: FrontMatter{Title: "unrelated title"},
		Body:        "deadlock deadlock deadlock",
	})

	results, err := s.SearchByContent("deadlock")
	if err != nil {
		t.Fatalf("SearchByContent: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("SearchByContent() = %d results, want 2", len(results))
	}
	if results[0].Item.Slug != "title-hit" {
		t.Fatalf("top result = %q, want title-hit (title weight 10 > 3 body hits)", results[0].Item.Slug)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("scores not descending: %d, %d", results[0].Score, results[1].Score)
	}
}

func TestStore_SearchByContentNoMatchReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	s.WriteAuto(Item{Category: CategoryPits, Slug: "a", FrontMatter: FrontMatter{Title: "foo"}, Body: "bar"})

	results, err := s.SearchByContent("zzz-nonexistent")
	if err != nil {
		t.Fatalf("SearchByContent: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("SearchByContent() = %d results, want 0", len(results))
	}
}
