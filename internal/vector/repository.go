// Package vector provides chunk storage and similarity search backends.
package vector

import "context"

// Chunk is the unit of retrieval: a span of extracted text with its
// embedding vector and the name of the text unit it came from.
type Chunk struct {
	ID     string
	Source string
	Text   string
	Vector []float32
}

// SearchResult is a single match from a similarity search.
type SearchResult struct {
	ID     string
	Score  float32
	Source string
	Text   string
}

// Repository provides vector storage and similarity search.
type Repository interface {
	// Upsert inserts or updates chunks.
	Upsert(ctx context.Context, chunks []Chunk) error
	// Search finds the top-k most similar chunks, ordered by descending
	// similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// Close releases resources.
	Close() error
}

// Factory produces a fresh, empty Repository for an index build. Every
// ingest rebuilds from scratch, so the builder asks for a new repository
// rather than mutating the one queries are reading.
type Factory func(ctx context.Context, dimension int) (Repository, error)
