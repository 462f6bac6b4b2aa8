package index

import (
	"context"
	"fmt"

	"github.com/askdocs/askdocs/internal/llm"
	"github.com/askdocs/askdocs/internal/observability"
	"github.com/askdocs/askdocs/internal/vector"
)

// DefaultTopK is the retrieval breadth. Wide on purpose: answers often
// synthesize facts spread across several documents.
const DefaultTopK = 30

// Retriever answers similarity queries against one Index using the
// same embedding function the index was built with.
type Retriever struct {
	provider llm.Provider
	index    *Index
}

// NewRetriever binds a Retriever to an index.
func NewRetriever(provider llm.Provider, ix *Index) *Retriever {
	return &Retriever{provider: provider, index: ix}
}

// Index returns the bound index.
func (r *Retriever) Index() *Index { return r.index }

// Search embeds the query and returns the top-k chunks by descending
// similarity. Deterministic for a fixed index and query.
func (r *Retriever) Search(ctx context.Context, query string, k int) (results []vector.SearchResult, err error) {
	if k <= 0 {
		k = DefaultTopK
	}
	ctx, span := observability.StartRetrievalSpan(ctx, k)
	defer func() { observability.EndSpan(span, err) }()

	vectors, err := r.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors, want 1", len(vectors))
	}
	return r.index.repo.Search(ctx, vectors[0], k)
}
