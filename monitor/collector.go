package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// FacetMetrics summarizes one facet of an ingestion run.
type FacetMetrics struct {
	Facet    string        `json:"facet"`
	Pages    int           `json:"pages"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
}

// RunReport is the flushed result of an ingestion run.
type RunReport struct {
	RunID         string         `json:"run_id"`
	Facets        []FacetMetrics `json:"facets"`
	FailedFacets  int            `json:"failed_facets"`
	Fetched       int            `json:"fetched"`
	Unique        int            `json:"unique"`
	Survivors     int            `json:"survivors"`
	Embedded      int            `json:"embedded"`
	EmbedFailures int            `json:"embed_failures"`
	Loaded        int            `json:"loaded"`
	Seeded        bool           `json:"seeded,omitempty"`
	TotalDuration time.Duration  `json:"total_duration"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
}

type Collector interface {
	RunID() string
	RecordFacet(m FacetMetrics)
	RecordStage(stage string, n int)
	Flush() RunReport
}

// RunCollector accumulates metrics for a single ingestion run and mirrors
// stage counts into the Prometheus gauges.
type RunCollector struct {
	mu        sync.RWMutex
	runID     string
	facets    []FacetMetrics
	stages    map[string]int
	startTime time.Time
}

func NewRunCollector() *RunCollector {
	return &RunCollector{
		runID:     uuid.New().String(),
		stages:    make(map[string]int),
		startTime: time.Now(),
	}
}

func (c *RunCollector) RunID() string { return c.runID }

func (c *RunCollector) RecordFacet(m FacetMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facets = append(c.facets, m)
}

const (
	StageFetched       = "fetched"
	StageUnique        = "unique"
	StageSurvivors     = "survivors"
	StageEmbedded      = "embedded"
	StageEmbedFailures = "embed_failures"
	StageLoaded        = "loaded"
	StageSeeded        = "seeded"
)

func (c *RunCollector) RecordStage(stage string, n int) {
	c.mu.Lock()
	c.stages[stage] = n
	c.mu.Unlock()
	IngestCandidates.WithLabelValues(stage).Set(float64(n))
}

func (c *RunCollector) Flush() RunReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	facets := make([]FacetMetrics, len(c.facets))
	copy(facets, c.facets)

	failed := 0
	for _, f := range facets {
		if !f.Success {
			failed++
		}
	}

	end := time.Now()
	return RunReport{
		RunID:         c.runID,
		Facets:        facets,
		FailedFacets:  failed,
		Fetched:       c.stages[StageFetched],
		Unique:        c.stages[StageUnique],
		Survivors:     c.stages[StageSurvivors],
		Embedded:      c.stages[StageEmbedded],
		EmbedFailures: c.stages[StageEmbedFailures],
		Loaded:        c.stages[StageLoaded],
		Seeded:        c.stages[StageSeeded] > 0,
		TotalDuration: end.Sub(c.startTime),
		StartTime:     c.startTime,
		EndTime:       end,
	}
}

type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (c *NoOpCollector) RunID() string                   { return "" }
func (c *NoOpCollector) RecordFacet(m FacetMetrics)      {}
func (c *NoOpCollector) RecordStage(stage string, n int) {}
func (c *NoOpCollector) Flush() RunReport                { return RunReport{} }
