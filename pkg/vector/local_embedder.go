package vector

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalEmbedder is a deterministic, dependency-free Embedder for
// offline and development use. It hashes whitespace tokens into a
// fixed-width vector instead of calling out to a real embedding
// provider, so results are not semantically meaningful beyond sharing
// tokens. Callers that need real nearest-neighbor quality must inject
// an Embedder backed by an actual embedding provider.
type LocalEmbedder struct {
	Dimensions int
}

// NewLocalEmbedder returns a LocalEmbedder with the given vector width.
// dims defaults to 256 when zero or negative.
func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &LocalEmbedder{Dimensions: dims}
}

// Embed implements Embedder.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		idx := int(h.Sum32()) % e.Dimensions
		if idx < 0 {
			idx += e.Dimensions
		}
		vec[idx]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}
