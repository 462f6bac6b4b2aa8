package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// mockRetryProvider fails a configured number of times before succeeding.
type mockRetryProvider struct {
	name     string
	failures int
	err      error
	calls    int
}

func (m *mockRetryProvider) Name() string { return m.name }

func (m *mockRetryProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, m.err
	}
	return &Response{Content: "success"}, nil
}

func (m *mockRetryProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 max retries, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("expected 1 second retry delay, got %v", cfg.RetryDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("expected 30 second max delay, got %v", cfg.MaxDelay)
	}
	if cfg.Timeout != 6*time.Minute {
		t.Errorf("expected 6 minute timeout, got %v", cfg.Timeout)
	}
}

func TestNewRetryProvider_NilConfig(t *testing.T) {
	inner := &mockRetryProvider{name: "test"}
	retry := NewRetryProvider(inner, nil)

	if retry == nil {
		t.Fatal("expected non-nil retry provider")
	}
	if retry.config == nil {
		t.Fatal("expected config to be set")
	}
	if retry.config.MaxRetries != 3 {
		t.Errorf("expected default 3 retries, got %d", retry.config.MaxRetries)
	}
}

func TestRetryProvider_Name(t *testing.T) {
	inner := &mockRetryProvider{name: "test-provider"}
	retry := NewRetryProvider(inner, nil)

	if retry.Name() != "test-provider" {
		t.Errorf("expected 'test-provider', got %s", retry.Name())
	}
}

func TestRetryProvider_Complete_SucceedsFirstTry(t *testing.T) {
	inner := &mockRetryProvider{name: "test"}
	retry := NewRetryProvider(inner, fastRetryConfig(3))

	resp, err := retry.Complete(context.Background(), &Prompt{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "success" {
		t.Errorf("expected 'success', got %s", resp.Content)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetryProvider_Complete_RetriesTransientFailure(t *testing.T) {
	inner := &mockRetryProvider{
		name:     "test",
		failures: 2,
		err:      fmt.Errorf("status 503 service unavailable"),
	}
	retry := NewRetryProvider(inner, fastRetryConfig(3))

	resp, err := retry.Complete(context.Background(), &Prompt{}, nil)
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if resp.Content != "success" {
		t.Errorf("expected 'success', got %s", resp.Content)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryProvider_Complete_NonRetryableFailsFast(t *testing.T) {
	inner := &mockRetryProvider{
		name:     "test",
		failures: 10,
		err:      fmt.Errorf("status 401 unauthorized"),
	}
	retry := NewRetryProvider(inner, fastRetryConfig(3))

	_, err := retry.Complete(context.Background(), &Prompt{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("non-retryable error should not retry, got %d calls", inner.calls)
	}
}

func TestRetryProvider_Complete_MaxRetriesExceeded(t *testing.T) {
	inner := &mockRetryProvider{
		name:     "test",
		failures: 10,
		err:      fmt.Errorf("status 500 internal server error"),
	}
	retry := NewRetryProvider(inner, fastRetryConfig(2))

	_, err := retry.Complete(context.Background(), &Prompt{}, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls (initial + 2 retries), got %d", inner.calls)
	}
}

func TestRetryProvider_Embed_Retries(t *testing.T) {
	inner := &mockRetryProvider{
		name:     "test",
		failures: 1,
		err:      fmt.Errorf("429 Too Many Requests"),
	}
	retry := NewRetryProvider(inner, fastRetryConfig(3))

	vectors, err := retry.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetryProvider_CancelledContext(t *testing.T) {
	inner := &mockRetryProvider{
		name:     "test",
		failures: 10,
		err:      fmt.Errorf("status 503"),
	}
	retry := NewRetryProvider(inner, fastRetryConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry.Complete(ctx, &Prompt{}, nil)
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate_limit", errors.New("429 Too Many Requests"), true},
		{"server_error", errors.New("status 502 bad gateway"), true},
		{"bad_request", errors.New("status 400 bad request"), false},
		{"unauthorized", errors.New("status 401"), false},
		{"not_found", errors.New("status 404"), false},
		{"unknown", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	r := NewRetryProvider(&mockRetryProvider{}, &RetryConfig{
		RetryDelay: time.Second,
		MaxDelay:   5 * time.Second,
	})

	if d := r.backoff(1); d != time.Second {
		t.Errorf("attempt 1: expected 1s, got %v", d)
	}
	if d := r.backoff(2); d != 2*time.Second {
		t.Errorf("attempt 2: expected 2s, got %v", d)
	}
	if d := r.backoff(3); d != 4*time.Second {
		t.Errorf("attempt 3: expected 4s, got %v", d)
	}
	if d := r.backoff(10); d != 5*time.Second {
		t.Errorf("attempt 10: expected cap of 5s, got %v", d)
	}
}

func TestWrapWithRetry_NilProvider(t *testing.T) {
	if p := WrapWithRetry(nil, ProviderConfig{}); p != nil {
		t.Fatal("expected nil for nil provider")
	}
}
