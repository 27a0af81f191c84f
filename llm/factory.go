package llm

import (
	"fmt"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// New builds the configured provider client, wrapped in retry and
// dimension checking, and in a cache when one is configured. The returned
// close func releases the cache.
func New(cfg Config) (Embedder, func() error, error) {
	base, err := newProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	var e Embedder = NewResilient(base, cfg.ModelConfig(), cfg.Retry)

	cache, err := NewCache(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	if cache == nil {
		return e, func() error { return nil }, nil
	}
	return NewCachedEmbedder(e, cache, cfg.ModelConfig().String()), cache.Close, nil
}

func newProvider(cfg Config) (Embedder, error) {
	// the per-attempt deadline comes from the retry policy; the client
	// timeout only guards against a hung connection outside it
	timeout := cfg.Retry.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	cc := ClientConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Timeout: 2 * timeout}

	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaEmbedClient(cc), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embeddings require an API key")
		}
		return NewOpenAIEmbedClient(cc, cfg.Dimension), nil
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini embeddings require an API key")
		}
		return NewGeminiEmbedClient(cc, cfg.Dimension), nil
	case ProviderHuggingFace:
		return NewHuggingFaceEmbedClient(cc), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
