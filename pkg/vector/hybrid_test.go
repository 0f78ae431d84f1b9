package vector

import (
	"context"
	"errors"
	"testing"
)

var errUnavailable = errors.New("source unavailable")

func TestHybridSearch_FusesAndRanks(t *testing.T) {
	vectorDocs := []RankedDoc{
		{ID: "shared", Body: "use exponential backoff for retries", Source: "vector"},
		{ID: "vec-only", Body: "embed the query before search", Source: "vector"},
	}
	knowledgeDocs := []RankedDoc{
		{ID: "shared", Body: "use exponential backoff for retries", Source: "knowledge"},
		{ID: "know-only", Body: "split auto and manual knowledge", Source: "knowledge"},
	}

	h := NewHybridSearch(map[string]Searcher{
		"vector":    func(_ context.Context, _ string, limit int) ([]RankedDoc, error) { return vectorDocs, nil },
		"knowledge": func(_ context.Context, _ string, limit int) ([]RankedDoc, error) { return knowledgeDocs, nil },
	})

	results, err := h.Search(context.Background(), "retry policy", HybridOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search() returned no results")
	}
	if results[0].Doc.ID != "shared" {
		t.Fatalf("top result = %v, want the doc ranked first by both sources", results[0].Doc.ID)
	}
	if len(results[0].Sources) != 2 {
		t.Fatalf("top result sources = %v, want both vector and knowledge", results[0].Sources)
	}
}

func TestHybridSearch_RankMonotonicity(t *testing.T) {
	docs := []RankedDoc{
		{ID: "a", Body: "alpha document body text", Source: "vector"},
		{ID: "b", Body: "beta document body text unrelated", Source: "vector"},
		{ID: "c", Body: "gamma document body text also unrelated", Source: "vector"},
	}
	h := NewHybridSearch(map[string]Searcher{
		"vector": func(_ context.Context, _ string, limit int) ([]RankedDoc, error) { return docs, nil },
	})

	results, err := h.Search(context.Background(), "q", HybridOptions{Limit: 10, RRFK: 60})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Fatalf("result %d (score %v) ranked above result %d (score %v): not monotone", i-1, results[i-1].Score, i, results[i].Score)
		}
	}
	if results[0].Doc.ID != "a" {
		t.Fatalf("first result = %v, want a (best single-source rank)", results[0].Doc.ID)
	}
}

func TestHybridSearch_JaccardDedupMergesSources(t *testing.T) {
	docs := []RankedDoc{
		{ID: "x", Body: "retry on timeout with exponential backoff delay", Source: "vector"},
	}
	nearDup := []RankedDoc{
		{ID: "y", Body: "retry on timeout with exponential backoff delays", Source: "knowledge"},
	}
	h := NewHybridSearch(map[string]Searcher{
		"vector":    func(_ context.Context, _ string, limit int) ([]RankedDoc, error) { return docs, nil },
		"knowledge": func(_ context.Context, _ string, limit int) ([]RankedDoc, error) { return nearDup, nil },
	})

	results, err := h.Search(context.Background(), "q", HybridOptions{Limit: 10, DedupThreshold: 0.7})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want near-duplicates merged into 1", len(results))
	}
	if len(results[0].Sources) != 2 {
		t.Fatalf("merged result sources = %v, want both vector and knowledge", results[0].Sources)
	}
}

func TestHybridSearch_SourceFailureDegradesGracefully(t *testing.T) {
	h := NewHybridSearch(map[string]Searcher{
		"vector": func(_ context.Context, _ string, limit int) ([]RankedDoc, error) {
			return []RankedDoc{{ID: "a", Body: "ok", Source: "vector"}}, nil
		},
		"knowledge": func(_ context.Context, _ string, limit int) ([]RankedDoc, error) {
			return nil, errUnavailable
		},
	})

	results, err := h.Search(context.Background(), "q", HybridOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Search returned error, want graceful degradation: %v", err)
	}
	if len(results) != 1 || results[0].Doc.ID != "a" {
		t.Fatalf("results = %+v, want only the surviving source's doc", results)
	}
}
