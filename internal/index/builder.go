package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/askdocs/askdocs/internal/llm"
	"github.com/askdocs/askdocs/internal/store"
	"github.com/askdocs/askdocs/internal/vector"
)

// ErrBuild marks an index build aborted by the embedding service or
// the vector backend. The previously built index stays valid.
var ErrBuild = errors.New("index build failed")

// ErrEmptyCorpus is returned when there is nothing to index.
var ErrEmptyCorpus = errors.New("no text units to index")

// embedBatchSize bounds a single embedding request.
const embedBatchSize = 64

// Index is the searchable collection of chunks for one document set.
// It is immutable after Build and replaced wholesale on re-ingest.
type Index struct {
	repo       vector.Repository
	dimension  int
	chunkCount int
	sources    []string
}

// ChunkCount returns the number of indexed chunks.
func (ix *Index) ChunkCount() int { return ix.chunkCount }

// Sources returns the text unit names the index was built from.
func (ix *Index) Sources() []string { return ix.sources }

// Close releases the underlying repository.
func (ix *Index) Close() error { return ix.repo.Close() }

// Builder turns a text corpus into an Index.
type Builder struct {
	provider llm.Provider
	chunker  *Chunker
	factory  vector.Factory
	log      *slog.Logger
}

// NewBuilder creates a Builder embedding with the given provider and
// storing into repositories from the given factory.
func NewBuilder(provider llm.Provider, chunker *Chunker, factory vector.Factory, log *slog.Logger) *Builder {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{provider: provider, chunker: chunker, factory: factory, log: log}
}

// Build chunks every text unit, embeds all chunks, and stores them in
// a fresh repository. All-or-nothing: any embedding or storage error
// aborts the build and the caller keeps its previous index.
func (b *Builder) Build(ctx context.Context, units []store.TextUnit) (*Index, error) {
	var texts []string
	var sourcesPerChunk []string
	var sources []string
	for _, unit := range units {
		pieces := b.chunker.Split(unit.Text)
		if len(pieces) == 0 {
			continue
		}
		sources = append(sources, unit.Name)
		for _, piece := range pieces {
			texts = append(texts, piece)
			sourcesPerChunk = append(sourcesPerChunk, unit.Name)
		}
	}
	if len(texts) == 0 {
		return nil, ErrEmptyCorpus
	}

	// Embed everything before touching storage, so an unreachable
	// embedding service cannot leave a half-written repository behind.
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := b.provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: embedding: %v", ErrBuild, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: embedding count mismatch: got %d, want %d", ErrBuild, len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	dimension := len(vectors[0])
	repo, err := b.factory(ctx, dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuild, err)
	}

	chunks := make([]vector.Chunk, len(texts))
	for i := range texts {
		chunks[i] = vector.Chunk{
			ID:     newUUID(),
			Source: sourcesPerChunk[i],
			Text:   texts[i],
			Vector: vectors[i],
		}
	}
	if err := repo.Upsert(ctx, chunks); err != nil {
		repo.Close()
		return nil, fmt.Errorf("%w: upsert: %v", ErrBuild, err)
	}

	b.log.Info("index built", "text_units", len(sources), "chunks", len(chunks), "dimension", dimension)
	return &Index{
		repo:       repo,
		dimension:  dimension,
		chunkCount: len(chunks),
		sources:    sources,
	}, nil
}
