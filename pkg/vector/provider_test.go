package vector

import (
	"testing"
)

func TestNewChromaProvider_RequiresHost(t *testing.T) {
	if _, err := NewChromaProvider(ChromaConfig{}); err == nil {
		t.Fatal("NewChromaProvider() with empty Host, want error")
	}
	p, err := NewChromaProvider(ChromaConfig{Host: "localhost"})
	if err != nil {
		t.Fatalf("NewChromaProvider: %v", err)
	}
	if p.Name() != "chroma" {
		t.Fatalf("Name() = %q, want chroma", p.Name())
	}
	if p.baseURL != "http://localhost:8000" {
		t.Fatalf("baseURL = %q, want default port 8000", p.baseURL)
	}
}

func TestNewWeaviateProvider_RequiresHost(t *testing.T) {
	if _, err := NewWeaviateProvider(WeaviateConfig{}); err == nil {
		t.Fatal("NewWeaviateProvider() with empty Host, want error")
	}
	p, err := NewWeaviateProvider(WeaviateConfig{Host: "localhost", UseTLS: true})
	if err != nil {
		t.Fatalf("NewWeaviateProvider: %v", err)
	}
	if p.baseURL != "https://localhost:8080" {
		t.Fatalf("baseURL = %q, want TLS default port 8080", p.baseURL)
	}
}

func TestNewQdrantProvider_DefaultsHostAndPort(t *testing.T) {
	p, err := NewQdrantProvider(QdrantConfig{})
	if err != nil {
		t.Fatalf("NewQdrantProvider: %v", err)
	}
	defer p.Close()
	if p.Name() != "qdrant" {
		t.Fatalf("Name() = %q, want qdrant", p.Name())
	}
}

func TestNewPineconeProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewPineconeProvider(PineconeConfig{}); err == nil {
		t.Fatal("NewPineconeProvider() with empty APIKey, want error")
	}
}

func TestNewChromemProvider_InMemoryByDefault(t *testing.T) {
	p, err := NewChromemProvider(ChromemConfig{})
	if err != nil {
		t.Fatalf("NewChromemProvider: %v", err)
	}
	defer p.Close()
	if p.Name() != "chromem" {
		t.Fatalf("Name() = %q, want chromem", p.Name())
	}
}

func TestConvertChromaResults_SortsByScoreDescending(t *testing.T) {
	raw := map[string]any{
		"ids":       []any{[]any{"a", "b"}},
		"distances": []any{[]any{0.8, 0.1}},
		"documents": []any{[]any{"doc a", "doc b"}},
		"metadatas": []any{[]any{map[string]any{"k": "v1"}, map[string]any{"k": "v2"}}},
	}
	results := convertChromaResults(raw)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != "b" {
		t.Fatalf("results[0].ID = %q, want b (lower distance = higher similarity)", results[0].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("results not sorted by descending score: %+v", results)
	}
}

func TestConvertChromaResults_EmptyOnNil(t *testing.T) {
	if got := convertChromaResults(nil); len(got) != 0 {
		t.Fatalf("convertChromaResults(nil) = %v, want empty", got)
	}
}

func TestBuildWeaviateWhereClause(t *testing.T) {
	if got := buildWeaviateWhereClause(nil); got != nil {
		t.Fatalf("buildWeaviateWhereClause(nil) = %v, want nil", got)
	}
	single := buildWeaviateWhereClause(map[string]any{"collection": "plans"})
	if single["operator"] != "Equal" {
		t.Fatalf("single-key filter = %v, want an Equal operator", single)
	}
	multi := buildWeaviateWhereClause(map[string]any{"a": 1, "b": 2})
	if multi["operator"] != "And" {
		t.Fatalf("multi-key filter = %v, want an And operator", multi)
	}
}

func TestProviderConfig_SetDefaultsAndValidate(t *testing.T) {
	cfg := &ProviderConfig{}
	cfg.SetDefaults()
	if cfg.Type != ProviderChromem {
		t.Fatalf("default Type = %q, want chromem", cfg.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaulted config: %v", err)
	}

	bad := &ProviderConfig{Type: ProviderQdrant}
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate() with missing Qdrant config, want error")
	}
}

func TestNewProvider_UnknownTypeErrors(t *testing.T) {
	if _, err := NewProvider(&ProviderConfig{Type: "made-up"}); err == nil {
		t.Fatal("NewProvider() with unknown type, want error")
	}
	p, err := NewProvider(nil)
	if err != nil {
		t.Fatalf("NewProvider(nil): %v", err)
	}
	if p.Name() != "nil" {
		t.Fatalf("NewProvider(nil).Name() = %q, want nil", p.Name())
	}
}

func TestRegistry_RegisterGetList(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("primary", NilProvider{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("primary", NilProvider{}); err == nil {
		t.Fatal("Register() with a duplicate name, want error")
	}
	if _, ok := r.Get("primary"); !ok {
		t.Fatal("Get(primary) not found after Register")
	}
	if names := r.List(); len(names) != 1 || names[0] != "primary" {
		t.Fatalf("List() = %v, want [primary]", names)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(r.List()) != 0 {
		t.Fatal("Close() did not clear the registry")
	}
}
