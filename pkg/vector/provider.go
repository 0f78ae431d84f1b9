package vector

import "context"

// Result is a single hit returned by a similarity search against a remote
// Provider. It is distinct from vector.ScoredEntry, which scores the
// in-memory VectorStore index: Result carries whatever content field the
// remote database stored alongside the vector, since the provider (not
// VectorStore) owns that copy.
type Result struct {
	ID       string
	Content  string
	Vector   []float32
	Score    float32
	Metadata map[string]any
}

// Provider is the contract every backing vector database implements.
// chromem.go, qdrant.go, pinecone.go, weaviate.go and chroma.go each
// satisfy this interface against their own wire client.
type Provider interface {
	Name() string
	CreateCollection(ctx context.Context, collection string, dim int) error
	DeleteCollection(ctx context.Context, collection string) error
	Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	Close() error
}

// NilProvider is a no-op Provider used when no vector backend is
// configured; all operations succeed trivially and searches return no
// results, so callers composing HybridSearch degrade to keyword-only.
type NilProvider struct{}

func (NilProvider) Name() string { return "nil" }
func (NilProvider) CreateCollection(context.Context, string, int) error { return nil }
func (NilProvider) DeleteCollection(context.Context, string) error { return nil }
func (NilProvider) Upsert(context.Context, string, string, []float32, map[string]any) error {
	return nil
}
func (NilProvider) Search(context.Context, string, []float32, int) ([]Result, error) {
	return nil, nil
}
func (NilProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]Result, error) {
	return nil, nil
}
func (NilProvider) Delete(context.Context, string, string) error            { return nil }
func (NilProvider) DeleteByFilter(context.Context, string, map[string]any) error { return nil }
func (NilProvider) Close() error                                            { return nil }
