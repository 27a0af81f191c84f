package recommend

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/llm"
	"github.com/hubenschmidt/go-movienight/store"
	"github.com/hubenschmidt/go-movienight/vector"
)

// tableEmbedder maps known texts to fixed vectors.
func tableEmbedder(table map[string]vector.Vector) llm.Embedder {
	return llm.EmbedderFunc(func(ctx context.Context, text string) (vector.Vector, error) {
		v, ok := table[text]
		if !ok {
			return nil, errors.New("unknown text " + text)
		}
		return v, nil
	})
}

func record(title string, emb ...float64) catalog.Record {
	return catalog.Record{
		Item:      catalog.Item{Title: title, Description: title + " description"},
		Embedding: vector.Vector(emb),
	}
}

func TestRecommend_IdenticalVectorRanksFirst(t *testing.T) {
	embed := tableEmbedder(map[string]vector.Vector{
		"space battles": {1, 0, 0},
	})
	records := []catalog.Record{
		record("romance", 0, 1, 0),
		record("space opera", 1, 0, 0),
		record("mixed", 1, 1, 0),
	}

	res, err := NewEngine(5).Recommend(context.Background(),
		[]catalog.Answer{{Person: 0, Description: "space battles"}}, records, embed)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if res.TotalScored != 3 || len(res.Recommendations) != 3 {
		t.Fatalf("unexpected result sizes %+v", res)
	}
	top := res.Recommendations[0]
	if top.Title != "space opera" || math.Abs(top.Similarity-1) > 1e-9 {
		t.Errorf("top = %q (%v), want space opera (1)", top.Title, top.Similarity)
	}
	if res.Recommendations[2].Title != "romance" || res.Recommendations[2].Similarity != 0 {
		t.Errorf("last = %+v", res.Recommendations[2])
	}
}

func TestRecommend_NonFiniteScoreFailsRequest(t *testing.T) {
	embed := tableEmbedder(map[string]vector.Vector{"anything": {1, 0}})
	records := []catalog.Record{
		record("fine", 1, 0),
		record("corrupt", math.NaN(), 0),
	}

	_, err := NewEngine(5).Recommend(context.Background(),
		[]catalog.Answer{{Person: 0, Description: "anything"}}, records, embed)
	if !errors.Is(err, core.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if core.Classify(err) != core.KindInternal {
		t.Errorf("kind = %v, want internal", core.Classify(err))
	}
}

func TestRecommend_AveragesMembers(t *testing.T) {
	embed := tableEmbedder(map[string]vector.Vector{
		"action": {1, 0},
		"comedy": {0, 1},
	})
	records := []catalog.Record{
		record("pure action", 1, 0),
		record("action comedy", 1, 1),
		record("pure comedy", 0, 1),
	}
	answers := []catalog.Answer{{Person: 0, Description: "action"}, {Person: 1, Description: "comedy"}}

	res, err := NewEngine(1).Recommend(context.Background(), answers, records, embed)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0].Title != "action comedy" {
		t.Errorf("unexpected top result %+v", res.Recommendations)
	}
	if res.TotalScored != 3 {
		t.Errorf("TotalScored = %d", res.TotalScored)
	}
}

func TestRecommend_TiesKeepCatalogOrder(t *testing.T) {
	embed := tableEmbedder(map[string]vector.Vector{"q": {1, 0}})
	records := []catalog.Record{
		record("first", 2, 0),
		record("second", 1, 0),
		record("third", 3, 0),
	}
	res, err := NewEngine(3).Recommend(context.Background(), []catalog.Answer{{Description: "q"}}, records, embed)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if res.Recommendations[i].Title != want {
			t.Errorf("position %d = %q, want %q", i, res.Recommendations[i].Title, want)
		}
	}
}

func TestRecommend_Errors(t *testing.T) {
	embed := tableEmbedder(map[string]vector.Vector{"q": {1, 0}})
	records := []catalog.Record{record("a", 1, 0)}

	cases := []struct {
		name    string
		answers []catalog.Answer
		records []catalog.Record
		embed   llm.Embedder
		want    error
	}{
		{"no answers", nil, records, embed, core.ErrNoPreferences},
		{"blank answer", []catalog.Answer{{Description: "  "}}, records, embed, core.ErrNoPreferences},
		{"empty catalog", []catalog.Answer{{Description: "q"}}, nil, embed, core.ErrEmptyCatalog},
		{"embedding fails", []catalog.Answer{{Description: "unknown"}}, records, embed, core.ErrEmbeddingFailed},
		{"dimension skew", []catalog.Answer{{Description: "q"}}, []catalog.Record{record("a", 1, 0, 0)}, embed, core.ErrDimensionMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEngine(5).Recommend(context.Background(), tc.answers, tc.records, tc.embed)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRecommend_EmbeddingFailureIsFatal(t *testing.T) {
	var calls atomic.Int32
	embed := llm.EmbedderFunc(func(ctx context.Context, text string) (vector.Vector, error) {
		calls.Add(1)
		if text == "bad" {
			return nil, core.ErrEmbeddingUnavailable
		}
		return vector.Vector{1, 0}, nil
	})
	answers := []catalog.Answer{{Person: 0, Description: "good"}, {Person: 1, Description: "bad"}}

	_, err := NewEngine(5).Recommend(context.Background(), answers, []catalog.Record{record("a", 1, 0)}, embed)
	if !errors.Is(err, core.ErrEmbeddingFailed) || !errors.Is(err, core.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding failure, got %v", err)
	}
	if core.Classify(err) != core.KindTransient {
		t.Errorf("Classify = %v", core.Classify(err))
	}
}

func TestRecommend_DoesNotMutateInputs(t *testing.T) {
	embed := tableEmbedder(map[string]vector.Vector{"q": {0, 1}})
	records := []catalog.Record{record("a", 1, 0), record("b", 0, 1)}

	if _, err := NewEngine(5).Recommend(context.Background(), []catalog.Answer{{Description: "q"}}, records, embed); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if records[0].Title != "a" || records[1].Title != "b" || records[0].Embedding[0] != 1 {
		t.Errorf("records mutated: %+v", records)
	}
}

func TestService_SnapshotCache(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	if err := s.BulkInsert(ctx, []catalog.Record{record("a", 1, 0)}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	embed := tableEmbedder(map[string]vector.Vector{"q": {1, 0}})

	svc := NewService(s, embed, Config{TopK: 5, CacheTTL: time.Hour})
	now := time.Now()
	svc.now = func() time.Time { return now }

	res, err := svc.Recommend(ctx, []catalog.Answer{{Description: "q"}})
	if err != nil || res.TotalScored != 1 {
		t.Fatalf("Recommend: %v %+v", err, res)
	}

	if err := s.BulkInsert(ctx, []catalog.Record{record("b", 0, 1)}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	res, _ = svc.Recommend(ctx, []catalog.Answer{{Description: "q"}})
	if res.TotalScored != 1 {
		t.Errorf("expected cached snapshot, scored %d", res.TotalScored)
	}

	svc.Invalidate()
	res, _ = svc.Recommend(ctx, []catalog.Answer{{Description: "q"}})
	if res.TotalScored != 2 {
		t.Errorf("expected fresh snapshot after Invalidate, scored %d", res.TotalScored)
	}

	now = now.Add(2 * time.Hour)
	if err := s.BulkInsert(ctx, []catalog.Record{record("c", 1, 1)}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	res, _ = svc.Recommend(ctx, []catalog.Answer{{Description: "q"}})
	if res.TotalScored != 3 {
		t.Errorf("expected expired snapshot to reload, scored %d", res.TotalScored)
	}
}

func TestService_ValidatesBeforeLoading(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), tableEmbedder(nil), DefaultConfig())

	if _, err := svc.Recommend(context.Background(), nil); !errors.Is(err, core.ErrNoPreferences) {
		t.Errorf("expected ErrNoPreferences, got %v", err)
	}
	if _, err := svc.Recommend(context.Background(), []catalog.Answer{{Description: "q"}}); !errors.Is(err, core.ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}
}

// gatedStore blocks SelectAll until release is closed and fails if the
// context it was given has been cancelled by then.
type gatedStore struct {
	catalog.Store
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) SelectAll(ctx context.Context) ([]catalog.Record, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Store.SelectAll(ctx)
}

func TestService_SharedLoadSurvivesCallerCancel(t *testing.T) {
	mem := store.NewMemoryStore()
	if err := mem.BulkInsert(context.Background(), []catalog.Record{record("a", 1, 0)}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	gs := &gatedStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(gs, tableEmbedder(nil), Config{TopK: 5})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Catalog(firstCtx)
		firstErr <- err
	}()
	<-gs.entered

	type result struct {
		records []catalog.Record
		err     error
	}
	second := make(chan result, 1)
	go func() {
		recs, err := svc.Catalog(context.Background())
		second <- result{recs, err}
	}()
	// let the second caller join the in-flight load
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("first caller: expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(gs.release)
	select {
	case r := <-second:
		if r.err != nil || len(r.records) != 1 {
			t.Fatalf("second caller: %v %v", r.err, r.records)
		}
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	if n := gs.calls.Load(); n != 1 {
		t.Errorf("expected one shared store read, got %d", n)
	}
}
