package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository using brute-force cosine
// similarity. It is the default backend: the index is rebuilt from the
// full corpus on every ingest and never persisted, so a fresh
// MemoryRepository per build gives copy-and-swap semantics for free.
type MemoryRepository struct {
	mu        sync.RWMutex
	dimension int
	chunks    []Chunk
}

// NewMemory creates an empty in-memory repository for vectors of the
// given dimension.
func NewMemory(dimension int) (*MemoryRepository, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return &MemoryRepository{dimension: dimension}, nil
}

// MemoryFactory is a Factory producing fresh in-memory repositories.
func MemoryFactory(_ context.Context, dimension int) (Repository, error) {
	return NewMemory(dimension)
}

func (r *MemoryRepository) Upsert(_ context.Context, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		if len(c.Vector) != r.dimension {
			return fmt.Errorf("chunk %s: vector dimension %d, want %d", c.ID, len(c.Vector), r.dimension)
		}
	}
	r.chunks = append(r.chunks, chunks...)
	return nil
}

func (r *MemoryRepository) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if len(vector) != r.dimension {
		return nil, fmt.Errorf("query vector dimension %d, want %d", len(vector), r.dimension)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]SearchResult, 0, len(r.chunks))
	for _, c := range r.chunks {
		results = append(results, SearchResult{
			ID:     c.ID,
			Score:  cosineSimilarity(vector, c.Vector),
			Source: c.Source,
			Text:   c.Text,
		})
	}

	// Stable sort keeps insertion order on ties, so results are
	// deterministic for a fixed index and query.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks), nil
}

func (r *MemoryRepository) Close() error { return nil }

// cosineSimilarity returns a value in [-1, 1]; 1 means identical direction.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
