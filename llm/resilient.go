package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/monitor"
	"github.com/hubenschmidt/go-movienight/vector"
)

// Resilient retries transient embedding failures with bounded backoff and
// checks every result against the configured dimension.
type Resilient struct {
	next   Embedder
	model  core.ModelConfig
	policy core.RetryPolicy
}

func NewResilient(next Embedder, model core.ModelConfig, policy core.RetryPolicy) *Resilient {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if policy.Retryable == nil {
		policy.Retryable = core.IsRetryable
	}
	return &Resilient{next: next, model: model, policy: policy}
}

// DefaultRetryPolicy matches the upstream ingestion policy.
func DefaultRetryPolicy() core.RetryPolicy {
	return core.DefaultRetryPolicy()
}

// Embed returns core.ErrEmbeddingUnavailable once retries are exhausted or
// a permanent error is hit, a *core.DimensionError when the provider
// returns a vector of the wrong size, and core.ErrNonFinite when it
// contains NaN or Inf.
func (r *Resilient) Embed(ctx context.Context, text string) (vector.Vector, error) {
	start := time.Now()
	v, err := core.Retry(ctx, r.policy, func(ctx context.Context) (vector.Vector, error) {
		return r.next.Embed(ctx, text)
	})
	monitor.ObserveEmbedding(r.model.Provider, err, time.Since(start))

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}
	if err := r.model.CheckDimension(len(v)); err != nil {
		return nil, fmt.Errorf("%s: %w", r.model, err)
	}
	if err := vector.CheckFinite(v); err != nil {
		return nil, fmt.Errorf("%s: %w", r.model, err)
	}
	return v, nil
}
