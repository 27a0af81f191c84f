package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/vector"
)

const DefaultOllamaURL = "http://localhost:11434"

// OllamaEmbedClient handles Ollama-native embedding API.
type OllamaEmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaEmbedClient creates a client for Ollama's native embedding API.
func NewOllamaEmbedClient(cfg ClientConfig) *OllamaEmbedClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	host := strings.TrimSuffix(cfg.BaseURL, "/")
	host = strings.TrimSuffix(host, "/v1")
	return &OllamaEmbedClient{
		baseURL: host,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Embed generates an embedding for a single input using Ollama's native API.
func (c *OllamaEmbedClient) Embed(ctx context.Context, text string) (vector.Vector, error) {
	var result ollamaEmbedResponse
	err := postJSON(ctx, c.client, "Ollama", c.baseURL+"/api/embed", nil,
		ollamaEmbedRequest{Model: c.model, Input: text}, &result)
	if err != nil {
		return nil, err
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: no embeddings in response", core.ErrPermanent)
	}
	return vector.Vector(result.Embeddings[0]), nil
}
