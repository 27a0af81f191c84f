package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/monitor"
)

type Config struct {
	TopK int `koanf:"top_k" validate:"min=1,max=100"`

	// CacheTTL keeps the loaded catalog in memory between requests. Zero
	// reads the store on every request.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"min=0"`
}

func DefaultConfig() Config {
	return Config{TopK: DefaultTopK, CacheTTL: time.Minute}
}

// Service answers recommendation requests from the stored catalog.
type Service struct {
	store    catalog.Store
	embedder llm.Embedder
	engine   *Engine
	ttl      time.Duration
	now      func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	snapshot []catalog.Record
	loadedAt time.Time
}

func NewService(store catalog.Store, embedder llm.Embedder, cfg Config) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		engine:   NewEngine(cfg.TopK),
		ttl:      cfg.CacheTTL,
		now:      time.Now,
	}
}

// Recommend validates answers, loads the catalog and ranks it.
func (s *Service) Recommend(ctx context.Context, answers []catalog.Answer) (*Result, error) {
	start := time.Now()
	res, err := s.recommend(ctx, answers)

	outcome := "success"
	if err != nil {
		outcome = core.Classify(err).String()
	}
	monitor.ObserveRecommend(outcome, time.Since(start))
	return res, err
}

func (s *Service) recommend(ctx context.Context, answers []catalog.Answer) (*Result, error) {
	if err := ValidateAnswers(answers); err != nil {
		return nil, err
	}
	records, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Recommend(ctx, answers, records, s.embedder)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Debug().
		Int("members", len(answers)).
		Int("scored", res.TotalScored).
		Int("returned", len(res.Recommendations)).
		Msg("recommendation computed")
	return res, nil
}

// Catalog returns the current catalog, served from the in-memory snapshot
// while it is fresh. Concurrent misses share one store read, which is not
// tied to any single caller's cancellation.
func (s *Service) Catalog(ctx context.Context) ([]catalog.Record, error) {
	if s.ttl > 0 {
		s.mu.RLock()
		snap, at := s.snapshot, s.loadedAt
		s.mu.RUnlock()
		if snap != nil && s.now().Sub(at) < s.ttl {
			return snap, nil
		}
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("catalog", func() (any, error) {
		records, err := s.store.SelectAll(loadCtx)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		if s.ttl > 0 {
			s.mu.Lock()
			s.snapshot, s.loadedAt = records, s.now()
			s.mu.Unlock()
		}
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]catalog.Record), nil
	}
}

// Invalidate drops the cached snapshot so the next request reads the
// store.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.snapshot, s.loadedAt = nil, time.Time{}
	s.mu.Unlock()
}

// Count reports the number of stored records.
func (s *Service) Count(ctx context.Context) (int, error) {
	return catalog.Count(ctx, s.store)
}
