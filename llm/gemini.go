package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/vector"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel = "text-embedding-004"
)

// GeminiEmbedClient calls the Generative Language embedContent method.
type GeminiEmbedClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

func NewGeminiEmbedClient(cfg ClientConfig, dimensions int) *GeminiEmbedClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	return &GeminiEmbedClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      strings.TrimPrefix(cfg.Model, "models/"),
		dimensions: dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *GeminiEmbedClient) Embed(ctx context.Context, text string) (vector.Vector, error) {
	var req geminiEmbedRequest
	req.Content.Parts = []geminiPart{{Text: text}}
	req.OutputDimensionality = c.dimensions

	endpoint := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, url.PathEscape(c.model))
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var result geminiEmbedResponse
	if err := postJSON(ctx, c.client, "Gemini", endpoint, headers, req, &result); err != nil {
		return nil, err
	}

	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding values in response", core.ErrPermanent)
	}
	return vector.Vector(result.Embedding.Values), nil
}
