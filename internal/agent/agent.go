// Package agent implements the answer agent: a bounded tool-calling
// loop that lets the model search the indexed documents before
// producing a grounded answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdocs/askdocs/internal/index"
	"github.com/askdocs/askdocs/internal/llm"
	"github.com/askdocs/askdocs/internal/observability"
)

// ErrNoIndex means the agent has no index bound and cannot answer
// from documents.
var ErrNoIndex = errors.New("no index bound")

// ErrModelUnavailable means the language model call failed or timed
// out. Not retried here; the provider's retry decorator already did
// its part.
var ErrModelUnavailable = errors.New("model unavailable")

const searchToolName = "search_documents"

const systemPrompt = `You are a knowledgeable AI assistant that reads the documents ` +
	`provided by users and answers questions based on their content. When multiple ` +
	`documents cover a topic, use information from all of them and point out ` +
	`connections between them. Assume questions are about the uploaded documents, ` +
	`and ground your answers in results from the ` + searchToolName + ` tool.`

var searchToolParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Natural-language query to search the indexed documents with"
		}
	},
	"required": ["query"]
}`)

// Options tunes agent behavior.
type Options struct {
	// TopK is the retrieval breadth per search call.
	TopK int
	// MaxToolCalls bounds the tool loop. After the cap the model is
	// asked for a final answer with tools disabled.
	MaxToolCalls int
}

// DefaultOptions returns the default agent tuning.
func DefaultOptions() Options {
	return Options{
		TopK:         index.DefaultTopK,
		MaxToolCalls: 4,
	}
}

// Agent answers queries using one language model and at most one
// bound index. It is immutable: a new document set means a new Agent.
type Agent struct {
	provider  llm.Provider
	retriever *index.Retriever // nil in no-documents mode
	opts      Options
	log       *slog.Logger
}

// New creates an Agent. A nil retriever builds the no-documents agent
// used before the first successful ingest.
func New(provider llm.Provider, retriever *index.Retriever, opts Options, log *slog.Logger) *Agent {
	if opts.TopK <= 0 {
		opts.TopK = index.DefaultTopK
	}
	if opts.MaxToolCalls <= 0 {
		opts.MaxToolCalls = DefaultOptions().MaxToolCalls
	}
	if log == nil {
		log = slog.Default()
	}
	return &Agent{provider: provider, retriever: retriever, opts: opts, log: log}
}

// Ready reports whether an index is bound.
func (a *Agent) Ready() bool { return a.retriever != nil }

// Answer runs the tool loop for one query: ask the model; if it
// requests searches, run them and feed the results back; otherwise
// return its text. The model decides how many searches it needs, the
// agent decides how many it gets.
func (a *Agent) Answer(ctx context.Context, query string) (string, error) {
	if a.retriever == nil {
		return "", ErrNoIndex
	}

	tools := []llm.Tool{{
		Name:        searchToolName,
		Description: "Search through the uploaded documents and return the most relevant passages.",
		Parameters:  searchToolParams,
	}}
	messages := []llm.Message{{Role: llm.RoleUser, Content: query}}

	for turn := 0; ; turn++ {
		opts := &llm.RequestOptions{Tools: tools}
		final := turn >= a.opts.MaxToolCalls
		if final {
			// Loop cap reached: force a final answer.
			opts.Tools = nil
		}

		llmCtx, span := observability.StartLLMSpan(ctx, a.provider.Name(), "")
		start := time.Now()
		resp, err := a.provider.Complete(llmCtx, &llm.Prompt{
			SystemPrompt: systemPrompt,
			Messages:     messages,
		}, opts)
		if err == nil {
			observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, time.Since(start))
		}
		observability.EndSpan(span, err)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}

		// The capped turn is terminal regardless of the response: some
		// OpenAI-compatible servers emit tool calls even when no tools
		// were advertised, and those must not extend the loop.
		if final || len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result, err := a.runTool(ctx, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

// runTool dispatches a model-requested tool call.
func (a *Agent) runTool(ctx context.Context, call llm.ToolCall) (string, error) {
	if call.Name != searchToolName {
		// Unknown tool: tell the model instead of failing the query.
		a.log.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("unknown tool %q", call.Name), nil
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return fmt.Sprintf("invalid arguments for %s: %v", searchToolName, err), nil
	}

	results, err := a.retriever.Search(ctx, args.Query, a.opts.TopK)
	if err != nil {
		return "", fmt.Errorf("%w: retrieval: %v", ErrModelUnavailable, err)
	}
	a.log.Debug("search tool invoked", "query", args.Query, "results", len(results))

	if len(results) == 0 {
		return "No matching passages found.", nil
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", r.Source, r.Text)
	}
	return b.String(), nil
}
