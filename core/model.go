package core

import "fmt"

// ModelConfig identifies the embedding model a deployment is pinned to.
// Vectors from different models are never comparable, so Dimension is
// fixed for the lifetime of a catalog.
type ModelConfig struct {
	Name      string `json:"name" koanf:"model"`
	Provider  string `json:"provider,omitempty" koanf:"provider"`
	Dimension int    `json:"dimension" koanf:"dimension"`
}

func DefaultModelConfig(name string) ModelConfig {
	return ModelConfig{
		Name:      name,
		Provider:  "ollama",
		Dimension: 384,
	}
}

func (m ModelConfig) WithProvider(p string) ModelConfig {
	m.Provider = p
	return m
}

func (m ModelConfig) WithDimension(d int) ModelConfig {
	m.Dimension = d
	return m
}

// CheckDimension returns a *DimensionError when n differs from the
// configured dimension. A zero dimension accepts anything.
func (m ModelConfig) CheckDimension(n int) error {
	if m.Dimension > 0 && n != m.Dimension {
		return &DimensionError{Want: m.Dimension, Got: n}
	}
	return nil
}

func (m ModelConfig) String() string {
	return fmt.Sprintf("%s/%s[%d]", m.Provider, m.Name, m.Dimension)
}
