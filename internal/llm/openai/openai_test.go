package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askdocs/askdocs/internal/llm"
)

// fakeAPI serves just enough of the OpenAI wire protocol to exercise
// the client's request and response mapping.
func fakeAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_MapsMessagesAndTools(t *testing.T) {
	var captured map[string]any
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "hello back"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 7, "completion_tokens": 3},
		})
	})

	c := New("key", "test-model", srv.URL, "")
	resp, err := c.Complete(context.Background(), &llm.Prompt{
		SystemPrompt: "be helpful",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	}, &llm.RequestOptions{
		Tools: []llm.Tool{{Name: "search_documents", Parameters: json.RawMessage(`{}`)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Content != "hello back" {
		t.Errorf("content: got %q", resp.Content)
	}
	if resp.InputTokens != 7 || resp.OutputTokens != 3 {
		t.Errorf("usage: got %d/%d", resp.InputTokens, resp.OutputTokens)
	}

	msgs := captured["messages"].([]any)
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be helpful" {
		t.Errorf("system prompt not first message: %v", first)
	}
	tools := captured["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool in request, got %d", len(tools))
	}
}

func TestComplete_ParsesToolCalls(t *testing.T) {
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call-1",
						"type": "function",
						"function": map[string]any{
							"name":      "search_documents",
							"arguments": `{"query": "foo"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	})

	c := New("key", "test-model", srv.URL, "")
	resp, err := c.Complete(context.Background(), &llm.Prompt{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "q"}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call-1" || tc.Name != "search_documents" {
		t.Errorf("tool call mapping: %+v", tc)
	}
	if tc.Arguments != `{"query": "foo"}` {
		t.Errorf("arguments: got %q", tc.Arguments)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "m", "choices": []any{}})
	})

	c := New("key", "m", srv.URL, "")
	_, err := c.Complete(context.Background(), &llm.Prompt{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "q"}},
	}, nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestEmbed_OrdersByIndex(t *testing.T) {
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Deliberately out of order.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{2, 2}},
				{"index": 0, "embedding": []float32{1, 1}},
			},
		})
	})

	c := New("key", "m", srv.URL, "embed-model")
	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Errorf("vectors not reordered by index: %v", vectors)
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
		})
	})

	c := New("key", "m", srv.URL, "")
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for embedding count mismatch")
	}
}

func TestNew_DefaultEmbedModel(t *testing.T) {
	c := New("key", "m", "", "")
	if c.embedModel != defaultEmbedModel {
		t.Errorf("expected default embed model, got %s", c.embedModel)
	}
}
