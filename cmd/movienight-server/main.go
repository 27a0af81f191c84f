// Command movienight-server serves group movie recommendations over HTTP
// and, when configured, keeps the catalog fresh with scheduled ingestion.
//
// Configuration is read from config.yaml (or CONFIG_PATH) and the
// environment; see the config package for the variables it understands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/hubenschmidt/go-movienight/config"
	"github.com/hubenschmidt/go-movienight/ingest"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/recommend"
	"github.com/hubenschmidt/go-movienight/server"
	"github.com/hubenschmidt/go-movienight/store"
	"github.com/hubenschmidt/go-movienight/tmdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder, closeEmbedder, err := llm.New(cfg.Embedding)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create embedder")
	}
	defer closeEmbedder()

	catalogStore, err := store.New(ctx, cfg.Store, cfg.Embedding.Dimension)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open catalog store")
	}
	defer catalogStore.Close()

	model := cfg.Embedding.ModelConfig()
	logging.Info().
		Str("model", model.String()).
		Str("store", cfg.Store.ResolveDriver()).
		Msg("Catalog backend ready")

	recommender := recommend.NewService(catalogStore, embedder, cfg.Recommend)

	var pipeline *ingest.Pipeline
	if cfg.TMDB.APIKey != "" {
		client, err := tmdb.NewClient(cfg.TMDB)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create TMDB client")
		}
		pipeline = ingest.NewPipeline(client, cfg.Ingest.Plan(), cfg.Ingest.Pipeline)
	} else {
		logging.Warn().Msg("TMDB_API_KEY not set, ingestion can only load the seed catalog")
	}
	loader := ingest.NewLoader(embedder, catalogStore, cfg.Embedding.Dimension, cfg.Ingest.Loader)
	runner := ingest.NewRunner(pipeline, loader, cfg.Ingest, ingest.WithOnLoaded(func(int) {
		recommender.Invalidate()
	}))

	srv, err := server.New(server.Config{
		Recommender:       recommender,
		Ingester:          runner,
		Model:             model,
		StoreDriver:       cfg.Store.ResolveDriver(),
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		AdminToken:        cfg.Server.AdminToken,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create server")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	root := suture.New("movienight", suture.Spec{
		EventHook:        (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook(),
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		Timeout:          cfg.Server.ShutdownTimeout,
	})
	root.Add(server.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))
	if cfg.Ingest.Interval > 0 || cfg.Ingest.RunOnStart {
		root.Add(ingest.NewService(runner, cfg.Ingest.Interval, cfg.Ingest.RunOnStart, logging.Logger()))
		logging.Info().
			Dur("interval", cfg.Ingest.Interval).
			Bool("run_on_start", cfg.Ingest.RunOnStart).
			Msg("Scheduled ingestion enabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", httpServer.Addr).Msg("Starting movienight server")
	if err := root.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor stopped with error")
	}

	if unstopped, _ := root.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	logging.Info().Msg("Server stopped")
}
