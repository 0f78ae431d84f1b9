package vector

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evoagent/core/pkg/errs"
)

// Embedder is the external embedding collaborator consumed by VectorStore.
// Its implementation (an LLM/embedding provider adapter) is out of scope
// for this core; only the contract is consumed here.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorEntry is one stored vector record.
type VectorEntry struct {
	ID           string
	Collection   string
	Embedding    []float32
	Content      string
	Metadata     map[string]any
	CreatedAt    time.Time
	AccessCount  int
	Consolidated bool
}

// SearchOptions configures VectorStore.Search.
type SearchOptions struct {
	Collection string
	Limit      int
	MinScore   float32
	Filter     map[string]any
}

// ScoredEntry pairs an entry with its similarity/distance for a search hit.
type ScoredEntry struct {
	Entry      VectorEntry
	Similarity float32
	Distance   float32
}

// CleanupOptions bounds VectorStore.Cleanup.
type CleanupOptions struct {
	MaxAge         time.Duration
	MinAccessCount int
	Collection     string
}

// VectorStore is the in-memory source of truth for vector entries. A
// Provider, if configured, receives each Add synchronously (Upsert) and
// each Cleanup removal (Delete); the store never reads entries back from
// it, so the in-memory map starts empty on every restart.
type VectorStore struct {
	mu       sync.RWMutex
	entries  map[string]*VectorEntry
	embedder Embedder
	provider Provider
	cache    map[string][]float32 // query text -> embedding, cache-through
	cacheMu  sync.Mutex
}

// NewVectorStore builds a store. provider may be NilProvider{} when no
// external backend is configured.
func NewVectorStore(embedder Embedder, provider Provider) *VectorStore {
	if provider == nil {
		provider = NilProvider{}
	}
	return &VectorStore{
		entries:  make(map[string]*VectorEntry),
		embedder: embedder,
		provider: provider,
		cache:    make(map[string][]float32),
	}
}

// Add upserts entry by id, generating one if absent, and mirrors it to the
// configured Provider.
func (s *VectorStore) Add(ctx context.Context, entry VectorEntry) (VectorEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	cp := entry
	s.mu.Lock()
	s.entries[entry.ID] = &cp
	s.mu.Unlock()

	if err := s.provider.Upsert(ctx, entry.Collection, entry.ID, entry.Embedding, entry.Metadata); err != nil {
		return entry, errs.Wrap(errs.Transient, "vector provider upsert failed", err)
	}
	return entry, nil
}

// Get returns entry by id and increments its AccessCount.
func (s *VectorStore) Get(id string) (VectorEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return VectorEntry{}, false
	}
	e.AccessCount++
	return *e, true
}

// embedCached embeds query, reusing a prior embedding for the identical text.
func (s *VectorStore) embedCached(ctx context.Context, query string) ([]float32, error) {
	s.cacheMu.Lock()
	if v, ok := s.cache[query]; ok {
		s.cacheMu.Unlock()
		return v, nil
	}
	s.cacheMu.Unlock()

	v, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "embedding failed", err)
	}
	s.cacheMu.Lock()
	s.cache[query] = v
	s.cacheMu.Unlock()
	return v, nil
}

// Search embeds query, scores candidate entries by cosine similarity, and
// returns the top-Limit results above MinScore.
func (s *VectorStore) Search(ctx context.Context, query string, opts SearchOptions) ([]ScoredEntry, error) {
	qv, err := s.embedCached(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	candidates := make([]VectorEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if opts.Collection != "" && e.Collection != opts.Collection {
			continue
		}
		if !matchesFilter(e.Metadata, opts.Filter) {
			continue
		}
		candidates = append(candidates, *e)
	}
	s.mu.RUnlock()

	scored := make([]ScoredEntry, 0, len(candidates))
	for _, e := range candidates {
		sim := cosineSimilarity(qv, e.Embedding)
		if sim < opts.MinScore {
			continue
		}
		scored = append(scored, ScoredEntry{Entry: e, Similarity: sim, Distance: 1 - sim})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })

	limit := opts.Limit
	if limit <= 0 || limit > len(scored) {
		limit = len(scored)
	}
	return scored[:limit], nil
}

func matchesFilter(metadata, filter map[string]any) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// MarkConsolidated flips the consolidation flag for id.
func (s *VectorStore) MarkConsolidated(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.Consolidated = true
	return true
}

// Cleanup removes entries that are old, rarely accessed, and not
// consolidated.
func (s *VectorStore) Cleanup(ctx context.Context, opts CleanupOptions) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, e := range s.entries {
		if e.Consolidated {
			continue
		}
		if opts.Collection != "" && e.Collection != opts.Collection {
			continue
		}
		if opts.MaxAge > 0 && now.Sub(e.CreatedAt) < opts.MaxAge {
			continue
		}
		if opts.MinAccessCount > 0 && e.AccessCount >= opts.MinAccessCount {
			continue
		}
		delete(s.entries, id)
		_ = s.provider.Delete(ctx, e.Collection, id)
		removed++
	}
	return removed
}

// Count returns the number of entries currently held.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
