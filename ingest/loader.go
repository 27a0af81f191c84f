package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/monitor"
)

type LoaderConfig struct {
	Concurrency int `koanf:"embed_concurrency" validate:"min=0,max=64"`
}

// Loader embeds candidate items and replaces the catalog with the result.
type Loader struct {
	embedder  llm.Embedder
	store     catalog.Store
	dimension int
	cfg       LoaderConfig
}

func NewLoader(embedder llm.Embedder, store catalog.Store, dimension int, cfg LoaderConfig) *Loader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Loader{embedder: embedder, store: store, dimension: dimension, cfg: cfg}
}

// Load embeds items and swaps them into the store, returning how many
// records were written. A candidate whose embedding fails is skipped. A
// dimension mismatch aborts the load, and so does a batch in which nothing
// could be embedded; in both cases the stored catalog is left untouched.
func (l *Loader) Load(ctx context.Context, items []catalog.Item, c monitor.Collector) (int, error) {
	log := logging.Ctx(ctx).With().Str("component", "loader").Logger()

	records := make([]*catalog.Record, len(items))
	var failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, it := range items {
		g.Go(func() error {
			v, err := l.embedder.Embed(gctx, it.EmbeddingText())
			if err != nil {
				if errors.Is(err, core.ErrDimensionMismatch) {
					return err
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures.Add(1)
				log.Warn().Err(err).Str("title", it.Title).Msg("embedding failed, skipping candidate")
				return nil
			}
			records[i] = &catalog.Record{Item: it, Embedding: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("%w: embed candidates: %w", core.ErrIngestionFailed, err)
	}

	batch := make([]catalog.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			batch = append(batch, *r)
		}
	}
	c.RecordStage(monitor.StageEmbedded, len(batch))
	c.RecordStage(monitor.StageEmbedFailures, int(failures.Load()))

	if len(batch) == 0 {
		return 0, fmt.Errorf("%w: none of %d candidates could be embedded", core.ErrIngestionFailed, len(items))
	}

	if err := catalog.Replace(ctx, l.store, batch, l.dimension); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrIngestionFailed, err)
	}
	c.RecordStage(monitor.StageLoaded, len(batch))
	monitor.CatalogSize.Set(float64(len(batch)))

	log.Info().
		Int("loaded", len(batch)).
		Int64("embed_failures", failures.Load()).
		Msg("catalog replaced")
	return len(batch), nil
}
