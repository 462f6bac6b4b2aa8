// Package pipeline owns the ingest/query state machine and the
// currently active answer agent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/askdocs/askdocs/internal/agent"
	"github.com/askdocs/askdocs/internal/extract"
	"github.com/askdocs/askdocs/internal/index"
	"github.com/askdocs/askdocs/internal/llm"
	"github.com/askdocs/askdocs/internal/observability"
	"github.com/askdocs/askdocs/internal/store"
)

// ErrNotReady is the defined response for queries before the first
// successful ingest. Not a failure.
var ErrNotReady = errors.New("no documents indexed")

// ErrNoDocuments means an ingest found nothing to index.
var ErrNoDocuments = errors.New("no documents to ingest")

// State is the controller's lifecycle state.
type State string

const (
	// StateEmpty: no documents ever ingested; queries get ErrNotReady.
	StateEmpty State = "empty"
	// StateReady: an agent is bound to a built index.
	StateReady State = "ready"
)

// Controller owns the active agent reference. Queries read it
// lock-free; ingests rebuild off to the side, serialized by a mutex,
// and swap the reference only once the new agent is complete.
type Controller struct {
	store     *store.Store
	runner    *extract.Runner
	builder   *index.Builder
	provider  llm.Provider
	agentOpts agent.Options
	log       *slog.Logger

	ingestMu sync.Mutex
	index    *index.Index // current index, guarded by ingestMu
	active   atomic.Pointer[agent.Agent]
}

// New creates a Controller in the empty state, with a default agent
// that has no document access.
func New(s *store.Store, runner *extract.Runner, builder *index.Builder, provider llm.Provider, agentOpts agent.Options, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		store:     s,
		runner:    runner,
		builder:   builder,
		provider:  provider,
		agentOpts: agentOpts,
		log:       log,
	}
	c.active.Store(agent.New(provider, nil, agentOpts, log))
	return c
}

// State reports whether the controller has a built index.
func (c *Controller) State() State {
	if c.active.Load().Ready() {
		return StateReady
	}
	return StateEmpty
}

// Ingest rebuilds the index and agent from the accumulated document
// set: extract newly uploaded raw documents into the text area, then
// build a fresh index over every text unit, bind a fresh agent, swap.
// The text area accumulates across ingests, so each rebuild covers
// all documents uploaded so far even though extraction consumed their
// sources. On any failure the controller keeps its prior agent and
// state, and the error goes to the caller; re-ingesting an unchanged
// set rebuilds from the retained text units and succeeds.
func (c *Controller) Ingest(ctx context.Context) (err error) {
	c.ingestMu.Lock()
	defer c.ingestMu.Unlock()

	ctx, span := observability.StartIngestSpan(ctx)
	defer func() { observability.EndSpan(span, err) }()

	extracted, err := c.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("extracting documents: %w", err)
	}

	units, err := c.store.ListText()
	if err != nil {
		return fmt.Errorf("loading text units: %w", err)
	}
	if len(units) == 0 {
		return ErrNoDocuments
	}

	ix, err := c.builder.Build(ctx, units)
	if err != nil {
		return err
	}

	retriever := index.NewRetriever(c.provider, ix)
	c.active.Store(agent.New(c.provider, retriever, c.agentOpts, c.log))

	// Release the replaced index. For the memory backend this is a
	// no-op and in-flight queries finish against their snapshot; for
	// qdrant it drops the old build's collection and closes its
	// connection, so a straggler retrieval errors out rather than
	// reading a vanishing collection.
	if old := c.index; old != nil {
		if cerr := old.Close(); cerr != nil {
			c.log.Warn("previous index not released", "error", cerr)
		}
	}
	c.index = ix

	c.log.Info("ingest complete", "extracted", extracted, "text_units", len(units), "chunks", ix.ChunkCount())
	return nil
}

// Query answers a question against the active agent. In the empty
// state it returns ErrNotReady regardless of input.
func (c *Controller) Query(ctx context.Context, text string) (answer string, err error) {
	ctx, span := observability.StartQuerySpan(ctx)
	defer func() { observability.EndSpan(span, err) }()

	active := c.active.Load()
	if !active.Ready() {
		return "", ErrNotReady
	}
	return active.Answer(ctx, text)
}
