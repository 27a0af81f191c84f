package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/store/qdrant"
	"github.com/hubenschmidt/go-movienight/store/supabase"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
	DriverQdrant   = "qdrant"
)

// Config selects and configures the catalog backend.
type Config struct {
	Driver   string          `koanf:"driver" validate:"omitempty,oneof=memory sqlite postgres supabase qdrant"`
	DSN      string          `koanf:"dsn"`
	Supabase supabase.Config `koanf:"supabase"`
	Qdrant   qdrant.Config   `koanf:"qdrant"`
}

// ResolveDriver returns the configured driver, inferring it from the DSN
// when unset:
// - Empty DSN: SQLite at data/movienight.db
// - postgres:// or postgresql://: PostgreSQL
// - Anything else: SQLite at the specified path
func (c Config) ResolveDriver() string {
	if c.Driver != "" {
		return c.Driver
	}
	if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// New opens the configured catalog store. dimension is the deployment's
// embedding dimension; stores with typed vector columns need it up front.
func New(ctx context.Context, cfg Config, dimension int) (catalog.Store, error) {
	switch driver := cfg.ResolveDriver(); driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(cfg.DSN)
	case DriverPostgres:
		s, err := NewPostgresStore(ctx, cfg.DSN, dimension)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	case DriverSupabase:
		s, err := supabase.New(cfg.Supabase)
		if err != nil {
			return nil, fmt.Errorf("supabase: %w", err)
		}
		return s, nil
	case DriverQdrant:
		s, err := qdrant.New(ctx, cfg.Qdrant, dimension)
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
