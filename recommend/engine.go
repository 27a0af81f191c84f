// Package recommend ranks the catalog against the combined preferences of
// a group.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/vector"
)

const DefaultTopK = 5

// Result is the top of the ranking plus how many records were scored.
type Result struct {
	Recommendations []catalog.RankedResult `json:"recommendations"`
	TotalScored     int                    `json:"totalScored"`
}

// Engine scores catalog records against the mean embedding of a group's
// answers. It holds no state besides its cut-off and is safe for
// concurrent use.
type Engine struct {
	topK int
}

func NewEngine(topK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{topK: topK}
}

func (e *Engine) TopK() int { return e.topK }

// ValidateAnswers fails with core.ErrNoPreferences when there is nothing
// to recommend for.
func ValidateAnswers(answers []catalog.Answer) error {
	if len(answers) == 0 {
		return core.ErrNoPreferences
	}
	for _, a := range answers {
		if strings.TrimSpace(a.Description) == "" {
			return fmt.Errorf("%w: person %d gave an empty answer", core.ErrNoPreferences, a.Person)
		}
	}
	return nil
}

// Recommend embeds every answer, averages the vectors and returns the
// records most similar to the average. Any embedding failure fails the
// whole request, as does a record whose embedding has a different
// dimension than the query.
func (e *Engine) Recommend(ctx context.Context, answers []catalog.Answer, records []catalog.Record, embed llm.Embedder) (*Result, error) {
	if err := ValidateAnswers(answers); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrEmptyCatalog
	}

	query, err := e.queryVector(ctx, answers, embed)
	if err != nil {
		return nil, err
	}

	scored := make([]catalog.RankedResult, len(records))
	for i, r := range records {
		sim, err := vector.CosineSimilarity(query, r.Embedding)
		if err != nil {
			return nil, core.NewOpError("recommend.score", r.Title, err)
		}
		scored[i] = catalog.RankedResult{Record: r, Similarity: sim}
	}

	slices.SortStableFunc(scored, func(a, b catalog.RankedResult) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	k := min(e.topK, len(scored))
	return &Result{
		Recommendations: slices.Clip(scored[:k]),
		TotalScored:     len(scored),
	}, nil
}

func (e *Engine) queryVector(ctx context.Context, answers []catalog.Answer, embed llm.Embedder) (vector.Vector, error) {
	vecs := make([]vector.Vector, len(answers))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range answers {
		g.Go(func() error {
			v, err := embed.Embed(gctx, a.Description)
			if err != nil {
				return fmt.Errorf("person %d: %w", a.Person, err)
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, core.ErrDimensionMismatch) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailed, err)
	}

	query, err := vector.Average(vecs)
	if err != nil {
		return nil, core.NewOpError("recommend.average", "", err)
	}
	return query, nil
}
