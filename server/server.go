// Package server exposes recommendations and ingestion over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/ingest"
	"github.com/hubenschmidt/go-movienight/recommend"
)

// Recommender answers recommendation requests. *recommend.Service
// satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, answers []catalog.Answer) (*recommend.Result, error)
	Count(ctx context.Context) (int, error)
}

// Ingester starts catalog rebuilds in the background. *ingest.Runner
// satisfies it.
type Ingester interface {
	Start(ctx context.Context) (string, error)
	Status() ingest.Status
}

// Config configures a new Server instance.
type Config struct {
	Recommender Recommender
	Ingester    Ingester // Optional: enables POST /api/ingest together with AdminToken
	Model       core.ModelConfig
	StoreDriver string

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	AdminToken        string
}

// Server is the HTTP front of the recommender.
type Server struct {
	recommender Recommender
	ingester    Ingester
	model       core.ModelConfig
	storeDriver string
	adminToken  string
	cfg         Config
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Recommender == nil {
		return nil, errors.New("server: recommender is required")
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	return &Server{
		recommender: cfg.Recommender,
		ingester:    cfg.Ingester,
		model:       cfg.Model,
		storeDriver: cfg.StoreDriver,
		adminToken:  cfg.AdminToken,
		cfg:         cfg,
	}, nil
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
		}
		r.Post("/recommend", s.handleRecommend)
		if s.ingester != nil && s.adminToken != "" {
			r.Post("/ingest", s.handleIngest)
			r.Get("/ingest", s.handleIngestStatus)
		}
	})

	return r
}
