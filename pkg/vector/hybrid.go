package vector

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// RankedDoc is one hit from a single-source searcher feeding HybridSearch.
type RankedDoc struct {
	ID       string
	Body     string
	Source   string
	Metadata map[string]any
}

// Searcher returns up to limit ranked documents for query, best first.
type Searcher func(ctx context.Context, query string, limit int) ([]RankedDoc, error)

// HybridOptions configures HybridSearch.Search.
type HybridOptions struct {
	Limit          int
	RRFK           int                // default 60
	Weights        map[string]float64 // source name -> weight, normalized
	DedupThreshold float64            // default 0.85
}

// FusedResult is a document after RRF fusion and Jaccard dedup.
type FusedResult struct {
	Doc     RankedDoc
	Score   float64
	Sources []string
}

// HybridSearch fuses results from multiple named searchers via Reciprocal
// Rank Fusion, then deduplicates near-identical bodies.
type HybridSearch struct {
	searchers map[string]Searcher
}

// NewHybridSearch builds a fuser over the given named searchers, e.g.
// {"vector": vectorStore.Search-adapter, "knowledge": knowledgeStore.Search-adapter}.
func NewHybridSearch(searchers map[string]Searcher) *HybridSearch {
	return &HybridSearch{searchers: searchers}
}

// Search runs every configured searcher concurrently, fuses their rankings
// with reciprocal rank fusion, and collapses near-duplicate bodies.
func (h *HybridSearch) Search(ctx context.Context, query string, opts HybridOptions) ([]FusedResult, error) {
	if opts.RRFK <= 0 {
		opts.RRFK = 60
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	weights := normalizeWeights(opts.Weights, h.searchers)

	fetchLimit := opts.Limit * 4
	if fetchLimit < 20 {
		fetchLimit = 20
	}

	type sourceResult struct {
		name string
		docs []RankedDoc
		err  error
	}
	results := make([]sourceResult, len(h.searchers))
	names := make([]string, 0, len(h.searchers))
	for name := range h.searchers {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic iteration order

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			docs, err := h.searchers[name](ctx, query, fetchLimit)
			results[i] = sourceResult{name: name, docs: docs, err: err}
		}(i, name)
	}
	wg.Wait()

	type accum struct {
		doc     RankedDoc
		score   float64
		sources map[string]struct{}
	}
	byID := make(map[string]*accum)
	var order []string

	for _, r := range results {
		if r.err != nil {
			continue // a failing source degrades hybrid search, never aborts it
		}
		w := weights[r.name]
		for rank, doc := range r.docs {
			contribution := w / float64(opts.RRFK+rank+1)
			a, ok := byID[doc.ID]
			if !ok {
				a = &accum{doc: doc, sources: map[string]struct{}{}}
				byID[doc.ID] = a
				order = append(order, doc.ID)
			}
			a.score += contribution
			a.sources[doc.Source] = struct{}{}
		}
	}

	fused := make([]FusedResult, 0, len(order))
	for _, id := range order {
		a := byID[id]
		sources := make([]string, 0, len(a.sources))
		for s := range a.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		fused = append(fused, FusedResult{Doc: a.doc, Score: a.score, Sources: sources})
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })

	deduped := dedupJaccard(fused, opts.DedupThreshold)

	if len(deduped) > opts.Limit {
		deduped = deduped[:opts.Limit]
	}
	return deduped, nil
}

func normalizeWeights(weights map[string]float64, searchers map[string]Searcher) map[string]float64 {
	out := make(map[string]float64, len(searchers))
	var total float64
	for name := range searchers {
		w, ok := weights[name]
		if !ok {
			w = 1
		}
		out[name] = w
		total += w
	}
	if total == 0 {
		return out
	}
	for name := range out {
		out[name] /= total
	}
	return out
}

// dedupJaccard merges documents whose bodies exceed threshold similarity,
// keeping the earlier (higher-scored) entry and unioning source labels.
func dedupJaccard(in []FusedResult, threshold float64) []FusedResult {
	if threshold <= 0 {
		threshold = 0.85
	}
	kept := make([]FusedResult, 0, len(in))
	tokenSets := make([]map[string]struct{}, 0, len(in))

	for _, r := range in {
		tokens := tokenize(r.Doc.Body)
		dupIdx := -1
		for i, existing := range tokenSets {
			if jaccard(tokens, existing) >= threshold {
				dupIdx = i
				break
			}
		}
		if dupIdx == -1 {
			kept = append(kept, r)
			tokenSets = append(tokenSets, tokens)
			continue
		}
		kept[dupIdx].Sources = mergeSources(kept[dupIdx].Sources, r.Sources)
	}
	return kept
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func mergeSources(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
