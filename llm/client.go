package llm

import (
	"context"
	"time"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/vector"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (vector.Vector, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) (vector.Vector, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) (vector.Vector, error) {
	return f(ctx, text)
}

const (
	ProviderOllama      = "ollama"
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
)

// Config selects an embedding provider and the policies wrapped around it.
type Config struct {
	Provider  string           `koanf:"provider" validate:"oneof=ollama openai gemini huggingface"`
	Model     string           `koanf:"model" validate:"required"`
	BaseURL   string           `koanf:"base_url"`
	APIKey    string           `koanf:"api_key"`
	Dimension int              `koanf:"dimension" validate:"min=1"`
	Retry     core.RetryPolicy `koanf:"retry"`
	Cache     CacheConfig      `koanf:"cache"`
}

// ModelConfig describes the configured model.
func (c Config) ModelConfig() core.ModelConfig {
	return core.ModelConfig{Name: c.Model, Provider: c.Provider, Dimension: c.Dimension}
}

type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 60 * time.Second,
	}
}
