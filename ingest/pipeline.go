package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/monitor"
	"github.com/hubenschmidt/go-movienight/tmdb"
)

// Source is the paged upstream the pipeline reads from. *tmdb.Client
// satisfies it.
type Source interface {
	Ping(ctx context.Context) error
	Fetch(ctx context.Context, q tmdb.Query, page int) ([]tmdb.Movie, error)
	ImageURL(path string) string
}

var _ Source = (*tmdb.Client)(nil)

type PipelineConfig struct {
	// CourtesyDelay is the minimum spacing between any two page requests,
	// across all facets.
	CourtesyDelay time.Duration `koanf:"courtesy_delay" validate:"min=0"`
	Concurrency   int           `koanf:"concurrency" validate:"min=0,max=16"`
	Filter        FilterConfig  `koanf:"filter"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CourtesyDelay: 300 * time.Millisecond,
		Concurrency:   1,
		Filter:        DefaultFilterConfig(),
	}
}

// Pipeline fetches every facet of a plan and aggregates the results into
// ranked catalog items.
type Pipeline struct {
	src     Source
	plan    []Facet
	cfg     PipelineConfig
	limiter *rate.Limiter
}

func NewPipeline(src Source, plan []Facet, cfg PipelineConfig) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	limit := rate.Inf
	if cfg.CourtesyDelay > 0 {
		limit = rate.Every(cfg.CourtesyDelay)
	}
	return &Pipeline{
		src:     src,
		plan:    plan,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

type facetResult struct {
	movies []tmdb.Movie
	err    error
}

// Run checks the upstream connection, fetches all facets and returns the
// deduplicated, filtered and ranked items. A failing facet is logged and
// contributes only the pages it fetched before failing; Run only fails when the connection check fails or nothing
// survives aggregation.
func (p *Pipeline) Run(ctx context.Context, c monitor.Collector) ([]catalog.Item, error) {
	log := logging.Ctx(ctx).With().Str("component", "ingest").Logger()

	if err := p.src.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: upstream connection check: %w", core.ErrIngestionFailed, err)
	}
	log.Info().Int("facets", len(p.plan)).Msg("upstream reachable, fetching facets")

	results := make([]facetResult, len(p.plan))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, f := range p.plan {
		g.Go(func() error {
			start := time.Now()
			movies, pages, err := p.fetchFacet(gctx, f)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = facetResult{movies: movies, err: err}

			m := monitor.FacetMetrics{
				Facet:    f.Name,
				Pages:    pages,
				Items:    len(movies),
				Duration: time.Since(start),
				Success:  err == nil,
			}
			if err != nil {
				m.Error = err.Error()
				log.Warn().Err(err).
					Str("facet", f.Name).
					Int("pages_fetched", pages).
					Int("pages_lost", f.Pages-pages).
					Int("items_kept", len(movies)).
					Msg("facet failed, keeping pages fetched so far")
			} else {
				log.Debug().Str("facet", f.Name).Int("items", len(movies)).Msg("facet fetched")
			}
			c.RecordFacet(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []tmdb.Movie
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
		all = append(all, r.movies...)
	}

	unique := Dedupe(all)
	survivors := Rank(Filter(unique, p.cfg.Filter))
	c.RecordStage(monitor.StageFetched, len(all))
	c.RecordStage(monitor.StageUnique, len(unique))
	c.RecordStage(monitor.StageSurvivors, len(survivors))

	ev := log.Info()
	if failed > 0 {
		ev = log.Warn()
	}
	ev.Int("fetched", len(all)).
		Int("unique", len(unique)).
		Int("survivors", len(survivors)).
		Int("failed_facets", failed).
		Msg("aggregation complete")

	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: no candidates survived aggregation (%d of %d facets failed)",
			core.ErrIngestionFailed, failed, len(p.plan))
	}
	return Project(survivors, p.src.ImageURL), nil
}

// fetchFacet walks a facet's pages in order and stops at the first page
// that fails, returning the pages fetched before it along with the error.
// An empty page ends the facet early.
func (p *Pipeline) fetchFacet(ctx context.Context, f Facet) ([]tmdb.Movie, int, error) {
	var out []tmdb.Movie
	for page := 1; page <= f.Pages; page++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return out, page - 1, err
		}
		movies, err := p.src.Fetch(ctx, f.Query, page)
		monitor.ObserveUpstream(f.Name, err)
		if err != nil {
			return out, page - 1, fmt.Errorf("facet %s page %d: %w", f.Name, page, err)
		}
		if len(movies) == 0 {
			return out, page, nil
		}
		if f.PerPage > 0 && len(movies) > f.PerPage {
			movies = movies[:f.PerPage]
		}
		out = append(out, movies...)
	}
	return out, f.Pages, nil
}
