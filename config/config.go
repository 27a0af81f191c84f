// Package config loads the service configuration from defaults, an
// optional YAML file and the environment.
package config

import (
	"time"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/ingest"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/recommend"
	"github.com/hubenschmidt/go-movienight/store"
	"github.com/hubenschmidt/go-movienight/store/qdrant"
	"github.com/hubenschmidt/go-movienight/store/supabase"
	"github.com/hubenschmidt/go-movienight/tmdb"
)

type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   logging.Config   `koanf:"logging"`
	Embedding llm.Config       `koanf:"embedding"`
	Store     store.Config     `koanf:"store"`
	TMDB      tmdb.Config      `koanf:"tmdb"`
	Ingest    ingest.Config    `koanf:"ingest"`
	Recommend recommend.Config `koanf:"recommend"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP; zero disables
	// rate limiting.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// AdminToken guards POST /api/ingest. Empty disables the endpoint.
	AdminToken string `koanf:"admin_token"`
}

func defaultConfig() *Config {
	embedRetry := core.DefaultRetryPolicy()

	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              5001,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"http://localhost:3000"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		Logging: logging.DefaultConfig(),
		Embedding: llm.Config{
			Provider:  llm.ProviderOllama,
			Dimension: 384,
			Retry:     embedRetry,
			Cache: llm.CacheConfig{
				Backend:    "memory",
				TTL:        24 * time.Hour,
				MaxEntries: 10000,
				BadgerDir:  "data/embeddings",
			},
		},
		Store: store.Config{
			Supabase: supabase.Config{Table: supabase.DefaultTable},
			Qdrant:   qdrant.Config{URL: "http://localhost:6334", Collection: qdrant.DefaultCollection},
		},
		TMDB:      tmdb.DefaultConfig(),
		Ingest:    ingest.DefaultConfig(),
		Recommend: recommend.DefaultConfig(),
	}
}
