package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movienight_upstream_requests_total",
			Help: "Upstream movie API page requests by facet and outcome",
		},
		[]string{"facet", "outcome"},
	)

	UpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movienight_upstream_retries_total",
			Help: "Upstream request attempts that were retried",
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "movienight_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	IngestCandidates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "movienight_ingest_candidates",
			Help: "Candidates remaining after each aggregation stage of the last run",
		},
		[]string{"stage"},
	)

	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movienight_ingest_runs_total",
			Help: "Ingestion runs by outcome",
		},
		[]string{"outcome"},
	)

	EmbeddingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movienight_embedding_duration_seconds",
			Help:    "Embedding latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "outcome"},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movienight_recommend_duration_seconds",
			Help:    "Recommendation latency by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movienight_catalog_records",
			Help: "Records in the catalog after the last load",
		},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func ObserveEmbedding(provider string, err error, d time.Duration) {
	EmbeddingDuration.WithLabelValues(provider, outcome(err)).Observe(d.Seconds())
}

func ObserveRecommend(result string, d time.Duration) {
	RecommendDuration.WithLabelValues(result).Observe(d.Seconds())
}

func ObserveUpstream(facet string, err error) {
	UpstreamRequests.WithLabelValues(facet, outcome(err)).Inc()
}
