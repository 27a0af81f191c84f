package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/store"
)

var validate = validator.New()

// Validate runs the struct tag rules, then the checks that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", core.ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}

	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateIngest()
}

func (c *Config) validateEmbedding() error {
	e := c.Embedding
	if (e.Provider == "openai" || e.Provider == "gemini") && e.APIKey == "" {
		return fmt.Errorf("%w: %s embeddings require an API key", core.ErrInvalidConfig, e.Provider)
	}
	switch e.Cache.Backend {
	case "redis":
		if e.Cache.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL is required for the redis embedding cache", core.ErrInvalidConfig)
		}
	case "badger":
		if e.Cache.BadgerDir == "" {
			return fmt.Errorf("%w: badger embedding cache needs a directory", core.ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	s := c.Store
	switch s.ResolveDriver() {
	case store.DriverPostgres:
		if s.DSN == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres store", core.ErrInvalidConfig)
		}
	case store.DriverSupabase:
		if s.Supabase.URL == "" || s.Supabase.APIKey == "" {
			return fmt.Errorf("%w: SUPABASE_URL and SUPABASE_KEY are required for the supabase store", core.ErrInvalidConfig)
		}
		if err := validateHTTPURL(s.Supabase.URL); err != nil {
			return fmt.Errorf("%w: SUPABASE_URL: %w", core.ErrInvalidConfig, err)
		}
	case store.DriverQdrant:
		if s.Qdrant.URL == "" {
			return fmt.Errorf("%w: QDRANT_URL is required for the qdrant store", core.ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Interval > 0 && c.TMDB.APIKey == "" && !c.Ingest.FallbackToSeed {
		return fmt.Errorf("%w: scheduled ingestion needs TMDB_API_KEY or fallback_to_seed", core.ErrInvalidConfig)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
