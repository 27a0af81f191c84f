package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/vector"
)

const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIEmbedClient calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

func NewOpenAIEmbedClient(cfg ClientConfig, dimensions int) *OpenAIEmbedClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIURL
	}
	return &OpenAIEmbedClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *OpenAIEmbedClient) Embed(ctx context.Context, text string) (vector.Vector, error) {
	req := openAIEmbedRequest{Model: c.model, Input: text}
	// only the text-embedding-3 family accepts a requested size
	if strings.HasPrefix(c.model, "text-embedding-3") {
		req.Dimensions = c.dimensions
	}

	var result openAIEmbedResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.client, "OpenAI", c.baseURL+"/embeddings", headers, req, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", core.ErrPermanent)
	}
	return vector.Vector(result.Data[0].Embedding), nil
}
