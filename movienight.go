// Package movienight recommends movies to a group from each member's
// free-text preferences.
//
// Every catalog movie carries an embedding of its title and description.
// A group's answers are embedded, averaged into one query vector and the
// catalog is ranked by cosine similarity to it:
//
//	cfg, _ := config.Load()
//	embedder, closeFn, _ := llm.New(cfg.Embedding)
//	defer closeFn()
//	s, _ := store.New(ctx, cfg.Store, cfg.Embedding.Dimension)
//	svc := movienight.NewRecommender(s, embedder, cfg.Recommend)
//	res, err := svc.Recommend(ctx, []movienight.Answer{
//	    {Person: 0, Description: "something funny with heart"},
//	    {Person: 1, Description: "an animated adventure"},
//	})
//
// The catalog is built by the ingest package from the TMDB API; see
// cmd/movienight-ingest and cmd/movienight-server.
package movienight

import (
	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/ingest"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/recommend"
	"github.com/hubenschmidt/go-movienight/server"
	"github.com/hubenschmidt/go-movienight/vector"
)

// Catalog aliases
type (
	Item         = catalog.Item
	Media        = catalog.Media
	Record       = catalog.Record
	Answer       = catalog.Answer
	RankedResult = catalog.RankedResult
	Store        = catalog.Store
)

// Recommendation aliases
type (
	Recommender     = recommend.Service
	RecommendConfig = recommend.Config
	Result          = recommend.Result
)

// NewRecommender creates a recommendation service over a catalog store.
func NewRecommender(s Store, e Embedder, cfg RecommendConfig) *Recommender {
	return recommend.NewService(s, e, cfg)
}

// Embedding aliases
type (
	Embedder     = llm.Embedder
	EmbedderFunc = llm.EmbedderFunc
	Vector       = vector.Vector
	ModelConfig  = core.ModelConfig
)

// Ingestion aliases
type (
	Runner       = ingest.Runner
	IngestConfig = ingest.Config
	Facet        = ingest.Facet
)

// DefaultPlan returns the standard fetch plan plus one facet per search
// query.
func DefaultPlan(searches ...string) []Facet {
	return ingest.DefaultPlan(searches...)
}

// Server aliases
type (
	Server       = server.Server
	ServerConfig = server.Config
)

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	return server.New(cfg)
}

// Error sentinels callers commonly match on.
var (
	ErrNoPreferences     = core.ErrNoPreferences
	ErrEmptyCatalog      = core.ErrEmptyCatalog
	ErrDimensionMismatch = core.ErrDimensionMismatch
)
