package llm

import (
	"context"
	"encoding/json"
)

// Provider is the interface all model backends must implement.
type Provider interface {
	// Complete sends a conversation and returns the next assistant turn.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
}

// RequestOptions tunes a single completion call.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float32
	// Tools advertised to the model for this call. Empty disables tool use.
	Tools []Tool
}

// Tool describes a function the model may call during a completion.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters json.RawMessage
}

// ToolCall is a model-requested invocation of a Tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON arguments as produced by the model
}
