package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/vector"
)

func testClientConfig(url string) ClientConfig {
	return ClientConfig{BaseURL: url, Model: "test-model", APIKey: "key", Timeout: 5 * time.Second}
}

func TestOllamaEmbedClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" || req.Input != "space opera" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	// the /v1 suffix used for OpenAI-compatible chat is stripped
	c := NewOllamaEmbedClient(testClientConfig(server.URL + "/v1"))
	v, err := c.Embed(context.Background(), "space opera")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 || v[2] != 0.3 {
		t.Errorf("got %v", v)
	}
}

func TestOllamaEmbedClient_EmptyIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer server.Close()

	_, err := NewOllamaEmbedClient(testClientConfig(server.URL)).Embed(context.Background(), "x")
	if !errors.Is(err, core.ErrPermanent) {
		t.Errorf("expected ErrPermanent, got %v", err)
	}
}

func TestOpenAIEmbedClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		var req openAIEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Dimensions != 0 {
			t.Errorf("dimensions sent for non text-embedding-3 model: %d", req.Dimensions)
		}
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":3,"total_tokens":3}}`))
	}))
	defer server.Close()

	v, err := NewOpenAIEmbedClient(testClientConfig(server.URL), 2).Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 || v[0] != 1 {
		t.Errorf("got %v", v)
	}
}

func TestOpenAIEmbedClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewOpenAIEmbedClient(testClientConfig(server.URL), 2).Embed(context.Background(), "x")
	var se *core.StatusError
	if !errors.As(err, &se) || se.StatusCode != 429 || !se.Retryable() {
		t.Fatalf("expected retryable 429, got %v", err)
	}
	if !strings.Contains(se.Body, "rate limited") {
		t.Errorf("body not captured: %q", se.Body)
	}
}

func TestGeminiEmbedClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:embedContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			t.Error("missing api key header")
		}
		var req geminiEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Content.Parts) != 1 || req.Content.Parts[0].Text != "heist" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"embedding":{"values":[0.5,0.5,0.5,0.5]}}`))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Model = "models/text-embedding-004"
	v, err := NewGeminiEmbedClient(cfg, 4).Embed(context.Background(), "heist")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 4 {
		t.Errorf("got %v", v)
	}
}

func TestHuggingFaceEmbedClient_MeanPoolsTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sentence-transformers/all-MiniLM-L6-v2/pipeline/feature-extraction") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[[3,0],[3,8]]`))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Model = ""
	v, err := NewHuggingFaceEmbedClient(cfg).Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	// mean [3,4], normalized [0.6,0.8]
	if len(v) != 2 || !nearly(v[0], 0.6) || !nearly(v[1], 0.8) {
		t.Errorf("got %v", v)
	}
}

func TestDecodeFeatures(t *testing.T) {
	tests := []struct {
		raw     string
		wantLen int
		wantErr bool
	}{
		{`[1,2,3]`, 3, false},
		{`[[1,2],[3,4]]`, 2, false},
		{`[[[1,2],[3,4],[5,6]]]`, 2, false},
		{`[]`, 0, true},
		{`{"error":"loading"}`, 0, true},
	}
	for _, tt := range tests {
		v, err := decodeFeatures(json.RawMessage(tt.raw))
		if tt.wantErr {
			if err == nil {
				t.Errorf("decodeFeatures(%s) expected error", tt.raw)
			}
			continue
		}
		if err != nil || len(v) != tt.wantLen {
			t.Errorf("decodeFeatures(%s) = %v, %v", tt.raw, v, err)
		}
	}
}

func nearly(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func fastRetry() core.RetryPolicy {
	return core.RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		Multiplier:     2,
		MaxDelay:       4 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestResilient_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"embeddings":[[1,2,3]]}`))
	}))
	defer server.Close()

	model := core.ModelConfig{Name: "m", Provider: "ollama", Dimension: 3}
	r := NewResilient(NewOllamaEmbedClient(testClientConfig(server.URL)), model, fastRetry())

	v, err := r.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 || calls.Load() != 3 {
		t.Errorf("v=%v calls=%d", v, calls.Load())
	}
}

func TestResilient_PermanentFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	model := core.ModelConfig{Name: "m", Provider: "ollama", Dimension: 3}
	r := NewResilient(NewOllamaEmbedClient(testClientConfig(server.URL)), model, fastRetry())

	_, err := r.Embed(context.Background(), "x")
	if !errors.Is(err, core.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestResilient_DimensionCheck(t *testing.T) {
	inner := EmbedderFunc(func(ctx context.Context, text string) (vector.Vector, error) {
		return vector.Vector{1, 2}, nil
	})
	r := NewResilient(inner, core.ModelConfig{Name: "m", Dimension: 3}, fastRetry())

	_, err := r.Embed(context.Background(), "x")
	if !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestResilient_RejectsNonFinite(t *testing.T) {
	inner := EmbedderFunc(func(ctx context.Context, text string) (vector.Vector, error) {
		return vector.Vector{1, math.NaN(), 0}, nil
	})
	r := NewResilient(inner, core.ModelConfig{Name: "m", Dimension: 3}, fastRetry())

	if _, err := r.Embed(context.Background(), "x"); !errors.Is(err, core.ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, got %v", err)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, _, err := New(Config{Provider: "cohere", Model: "m", Dimension: 3}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, _, err := New(Config{Provider: ProviderOpenAI, Model: "m", Dimension: 3}); err == nil {
		t.Error("expected error for openai without key")
	}
}

func TestNew_WithMemoryCache(t *testing.T) {
	e, closeFn, err := New(Config{
		Provider:  ProviderOllama,
		Model:     "all-minilm",
		Dimension: 384,
		Cache:     CacheConfig{Backend: CacheMemory},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected *CachedEmbedder, got %T", e)
	}
}
