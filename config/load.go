package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/movienight/config.yaml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

// Load reads defaults, then the first config file found, then the
// environment, and validates the result.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applyProviderDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
	"ingest.search_queries",
}

// processSliceFields splits comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"host":                  "server.host",
	"port":                  "server.port",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"admin_token":           "server.admin_token",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
	"embedding_provider":    "embedding.provider",
	"embedding_model":       "embedding.model",
	"embedding_url":         "embedding.base_url",
	"embedding_api_key":     "embedding.api_key",
	"embedding_dimension":   "embedding.dimension",
	"embedding_cache":       "embedding.cache.backend",
	"embedding_cache_ttl":   "embedding.cache.ttl",
	"redis_url":             "embedding.cache.redis_url",
	"badger_dir":            "embedding.cache.badger_dir",
	"store_driver":          "store.driver",
	"database_url":          "store.dsn",
	"supabase_url":          "store.supabase.url",
	"supabase_key":          "store.supabase.key",
	"supabase_table":        "store.supabase.table",
	"qdrant_url":            "store.qdrant.url",
	"qdrant_api_key":        "store.qdrant.api_key",
	"qdrant_collection":     "store.qdrant.collection",
	"tmdb_api_key":          "tmdb.api_key",
	"tmdb_base_url":         "tmdb.base_url",
	"ingest_interval":       "ingest.interval",
	"ingest_on_start":       "ingest.run_on_start",
	"ingest_fallback_seed":  "ingest.fallback_to_seed",
	"ingest_search_queries": "ingest.search_queries",
	"ingest_courtesy_delay": "ingest.pipeline.courtesy_delay",
	"ingest_concurrency":    "ingest.pipeline.concurrency",
	"recommend_top_k":       "recommend.top_k",
	"recommend_cache_ttl":   "recommend.cache_ttl",
}

// defaultModels pairs each provider with a 384-dimension model so the
// default dimension holds whichever provider is picked.
var defaultModels = map[string]string{
	"ollama":      "all-minilm",
	"openai":      "text-embedding-3-small",
	"gemini":      "text-embedding-004",
	"huggingface": "sentence-transformers/all-MiniLM-L6-v2",
}

// providerEnv holds provider-specific variables; each applies only when
// its provider is selected and the generic setting is unset.
var providerEnv = map[string]struct{ url, key string }{
	"ollama":      {url: "OLLAMA_URL"},
	"openai":      {key: "OPENAI_API_KEY"},
	"gemini":      {key: "GEMINI_API_KEY"},
	"huggingface": {key: "HF_API_KEY"},
}

func applyProviderDefaults(cfg *Config) {
	e := &cfg.Embedding
	if e.Model == "" {
		e.Model = defaultModels[e.Provider]
	}
	vars := providerEnv[e.Provider]
	if e.BaseURL == "" && vars.url != "" {
		e.BaseURL = os.Getenv(vars.url)
	}
	if e.APIKey == "" && vars.key != "" {
		e.APIKey = os.Getenv(vars.key)
	}
}

// envTransformFunc maps known environment variables onto config keys.
// Anything unmapped is dropped so unrelated variables never leak in.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
