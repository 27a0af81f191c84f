package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/monitor"
)

// ErrRunInProgress is returned when a run is requested while another one
// has not finished.
var ErrRunInProgress = errors.New("ingestion run already in progress")

var errNoUpstream = fmt.Errorf("%w: no upstream source configured", core.ErrIngestionFailed)

// Config gathers everything an ingestion run needs besides its
// collaborators.
type Config struct {
	Pipeline       PipelineConfig `koanf:"pipeline"`
	Loader         LoaderConfig   `koanf:"loader"`
	SearchQueries  []string       `koanf:"search_queries"`
	FallbackToSeed bool           `koanf:"fallback_to_seed"`
	RunTimeout     time.Duration  `koanf:"run_timeout" validate:"min=0"`

	// Interval schedules repeated runs in the server; zero disables them.
	Interval   time.Duration `koanf:"interval" validate:"min=0"`
	RunOnStart bool          `koanf:"run_on_start"`
}

func DefaultConfig() Config {
	return Config{
		Pipeline:   DefaultPipelineConfig(),
		Loader:     LoaderConfig{Concurrency: 4},
		RunTimeout: 30 * time.Minute,
	}
}

// Plan is the fetch plan for this configuration.
func (c Config) Plan() []Facet {
	return DefaultPlan(c.SearchQueries...)
}

// Runner serializes ingestion runs and ties the pipeline to the loader.
type Runner struct {
	pipeline *Pipeline
	loader   *Loader
	cfg      Config
	onLoaded func(loaded int)

	mu      sync.Mutex
	running atomic.Bool

	statusMu sync.RWMutex
	last     *monitor.RunReport
	lastErr  error
}

// Status describes the runner's current and most recent run.
type Status struct {
	Running   bool               `json:"running"`
	Last      *monitor.RunReport `json:"last_run,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithOnLoaded registers a callback invoked after the catalog has been
// replaced, e.g. to drop cached snapshots.
func WithOnLoaded(fn func(loaded int)) RunnerOption {
	return func(r *Runner) { r.onLoaded = fn }
}

func NewRunner(pipeline *Pipeline, loader *Loader, cfg Config, opts ...RunnerOption) *Runner {
	r := &Runner{pipeline: pipeline, loader: loader, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one full ingestion: fetch, aggregate, embed and replace.
// When the upstream run fails and FallbackToSeed is set, the seed catalog
// is loaded instead.
func (r *Runner) Run(ctx context.Context) (monitor.RunReport, error) {
	return r.run(ctx, false)
}

// Seed replaces the catalog with SeedItems without touching the upstream.
func (r *Runner) Seed(ctx context.Context) (monitor.RunReport, error) {
	return r.run(ctx, true)
}

// Start admits a run and executes it in the background, returning the
// run id. The run keeps ctx's values but not its cancellation, so it
// outlives the caller (e.g. an HTTP request). Use Status for the outcome.
func (r *Runner) Start(ctx context.Context) (string, error) {
	if !r.acquire() {
		return "", ErrRunInProgress
	}
	c := monitor.NewRunCollector()
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer r.release()
		_, _ = r.execute(ctx, c, false)
	}()
	return c.RunID(), nil
}

// Status reports whether a run is in progress and how the last one ended.
func (r *Runner) Status() Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	st := Status{Running: r.running.Load(), Last: r.last}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

func (r *Runner) acquire() bool {
	if !r.mu.TryLock() {
		return false
	}
	r.running.Store(true)
	return true
}

func (r *Runner) release() {
	r.running.Store(false)
	r.mu.Unlock()
}

func (r *Runner) run(ctx context.Context, seedOnly bool) (monitor.RunReport, error) {
	if !r.acquire() {
		return monitor.RunReport{}, ErrRunInProgress
	}
	defer r.release()
	return r.execute(ctx, monitor.NewRunCollector(), seedOnly)
}

func (r *Runner) execute(ctx context.Context, c *monitor.RunCollector, seedOnly bool) (monitor.RunReport, error) {
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	ctx = logging.ContextWithRunID(ctx, c.RunID())
	log := logging.Ctx(ctx).With().Str("component", "runner").Logger()

	var (
		items  []catalog.Item
		err    error
		seeded = seedOnly
	)
	if seedOnly {
		items = SeedItems()
		c.RecordStage(monitor.StageSeeded, len(items))
	} else {
		items, err = r.fetch(ctx, c)
		if err != nil {
			if !r.cfg.FallbackToSeed || ctx.Err() != nil {
				return r.finish(c, "failed", err)
			}
			log.Warn().Err(err).Msg("upstream ingestion failed, loading seed catalog")
			items = SeedItems()
			seeded = true
			c.RecordStage(monitor.StageSeeded, len(items))
		}
	}

	loaded, err := r.loader.Load(ctx, items, c)
	if err != nil {
		return r.finish(c, "failed", err)
	}
	if r.onLoaded != nil {
		r.onLoaded(loaded)
	}

	outcome := "success"
	if seeded {
		outcome = "seeded"
	}
	return r.finish(c, outcome, nil)
}

func (r *Runner) fetch(ctx context.Context, c monitor.Collector) ([]catalog.Item, error) {
	if r.pipeline == nil {
		return nil, errNoUpstream
	}
	return r.pipeline.Run(ctx, c)
}

func (r *Runner) finish(c *monitor.RunCollector, outcome string, err error) (monitor.RunReport, error) {
	report := c.Flush()
	monitor.IngestRuns.WithLabelValues(outcome).Inc()

	ev := logging.Info()
	if err != nil {
		ev = logging.Error().Err(err)
	}
	ev.Str("run_id", report.RunID).
		Str("outcome", outcome).
		Int("facets", len(report.Facets)).
		Int("failed_facets", report.FailedFacets).
		Int("survivors", report.Survivors).
		Int("loaded", report.Loaded).
		Dur("duration", report.TotalDuration).
		Msg("ingestion run finished")

	if err != nil {
		err = fmt.Errorf("run %s: %w", report.RunID, err)
	}

	r.statusMu.Lock()
	r.last, r.lastErr = &report, err
	r.statusMu.Unlock()
	return report, err
}
