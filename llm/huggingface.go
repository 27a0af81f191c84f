package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/vector"
)

const (
	DefaultHuggingFaceURL   = "https://router.huggingface.co/hf-inference/models"
	DefaultHuggingFaceModel = "sentence-transformers/all-MiniLM-L6-v2"
)

// HuggingFaceEmbedClient calls the hosted feature-extraction pipeline. The
// endpoint returns either a pooled sentence vector or one vector per
// token; token output is mean pooled. Results are L2-normalized.
type HuggingFaceEmbedClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewHuggingFaceEmbedClient(cfg ClientConfig) *HuggingFaceEmbedClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHuggingFaceURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHuggingFaceModel
	}
	return &HuggingFaceEmbedClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HuggingFaceEmbedClient) Embed(ctx context.Context, text string) (vector.Vector, error) {
	endpoint := c.baseURL + "/" + c.model + "/pipeline/feature-extraction"
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	var raw json.RawMessage
	req := hfRequest{Inputs: text, Options: hfOptions{WaitForModel: true}}
	if err := postJSON(ctx, c.client, "HuggingFace", endpoint, headers, req, &raw); err != nil {
		return nil, err
	}

	v, err := decodeFeatures(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPermanent, err)
	}
	return vector.Normalize(v), nil
}

// decodeFeatures accepts [d], [[d]...] (tokens) or [[[d]...]] (batch of
// one) and returns one pooled vector.
func decodeFeatures(raw json.RawMessage) (vector.Vector, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return nil, fmt.Errorf("empty feature vector")
		}
		return flat, nil
	}

	var tokens [][]float64
	if err := json.Unmarshal(raw, &tokens); err == nil {
		return meanPool(tokens)
	}

	var batch [][][]float64
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("unrecognized feature-extraction output: %w", err)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("empty feature batch")
	}
	return meanPool(batch[0])
}

func meanPool(tokens [][]float64) (vector.Vector, error) {
	vs := make([]vector.Vector, len(tokens))
	for i, t := range tokens {
		vs[i] = t
	}
	return vector.Average(vs)
}
