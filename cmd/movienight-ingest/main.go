// Command movienight-ingest rebuilds the movie catalog once and exits.
//
//	movienight-ingest                 # fetch from TMDB, embed, replace the catalog
//	movienight-ingest -seed           # load the built-in seed movies instead
//	movienight-ingest -sample=false    # skip the sample query afterwards
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/config"
	"github.com/hubenschmidt/go-movienight/ingest"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/recommend"
	"github.com/hubenschmidt/go-movienight/store"
	"github.com/hubenschmidt/go-movienight/tmdb"
)

const sampleQuery = "I want an action movie with great visuals and amazing fight scenes"

type cliOptions struct {
	configPath string
	seed       bool
	sample     bool
}

func main() {
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logging.Error().Err(err).Msg("movienight-ingest failed")
		os.Exit(1)
	}
}

func parseFlags() cliOptions {
	var opts cliOptions
	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default: CONFIG_PATH or ./config.yaml)")
	flag.BoolVar(&opts.seed, "seed", false, "Load the built-in seed movies instead of fetching from TMDB")
	flag.BoolVar(&opts.sample, "sample", true, "Run a sample recommendation against the new catalog")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	opts.configPath = strings.TrimSpace(opts.configPath)
	return opts
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func run(ctx context.Context, opts cliOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Logging)

	embedder, closeEmbedder, err := llm.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	defer closeEmbedder()

	catalogStore, err := store.New(ctx, cfg.Store, cfg.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer catalogStore.Close()

	var pipeline *ingest.Pipeline
	if !opts.seed {
		if cfg.TMDB.APIKey == "" && !cfg.Ingest.FallbackToSeed {
			return errors.New("TMDB_API_KEY is required unless -seed or fallback_to_seed is set")
		}
		if cfg.TMDB.APIKey != "" {
			client, err := tmdb.NewClient(cfg.TMDB)
			if err != nil {
				return fmt.Errorf("create tmdb client: %w", err)
			}
			pipeline = ingest.NewPipeline(client, cfg.Ingest.Plan(), cfg.Ingest.Pipeline)
		}
	}

	loader := ingest.NewLoader(embedder, catalogStore, cfg.Embedding.Dimension, cfg.Ingest.Loader)
	runner := ingest.NewRunner(pipeline, loader, cfg.Ingest)

	runFn := runner.Run
	if opts.seed {
		runFn = runner.Seed
	}
	report, err := runFn(ctx)
	if err != nil {
		return err
	}
	logging.Info().
		Str("run_id", report.RunID).
		Int("loaded", report.Loaded).
		Int("embed_failures", report.EmbedFailures).
		Bool("seeded", report.Seeded).
		Msg("Catalog rebuilt")

	if !opts.sample {
		return nil
	}
	return sample(ctx, recommend.NewService(catalogStore, embedder, cfg.Recommend))
}

// sample runs one recommendation against the fresh catalog so a broken
// embedding setup shows up right away.
func sample(ctx context.Context, svc *recommend.Service) error {
	res, err := svc.Recommend(ctx, []catalog.Answer{{Person: 0, Description: sampleQuery}})
	if err != nil {
		return fmt.Errorf("sample query: %w", err)
	}
	for i, r := range res.Recommendations {
		logging.Info().
			Int("rank", i+1).
			Str("title", r.Title).
			Float64("similarity", r.Similarity).
			Msg("Sample result")
	}
	return nil
}
