package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hubenschmidt/go-movienight/vector"
)

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"  Space\t\topera  ": "Space opera",
		"ｆｕｌｌｗｉｄｔｈ":          "fullwidth",
		"bell\x07 character": "bell character",
		"line\nbreak":        "line break",
	}
	for in, want := range tests {
		if got := NormalizeText(in); got != want {
			t.Errorf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCacheKey_DependsOnModel(t *testing.T) {
	if CacheKey("a", "x") == CacheKey("b", "x") {
		t.Error("keys for different models collide")
	}
	if CacheKey("a", "x") != CacheKey("a", "x") {
		t.Error("key not deterministic")
	}
}

func TestCachedEmbedder(t *testing.T) {
	var calls atomic.Int32
	inner := EmbedderFunc(func(ctx context.Context, text string) (vector.Vector, error) {
		calls.Add(1)
		if text != "feel good comedy" {
			t.Errorf("inner saw unnormalized text %q", text)
		}
		return vector.Vector{1, 2}, nil
	})

	c := NewCachedEmbedder(inner, NewMemoryCache(time.Minute, 10), "m")
	ctx := context.Background()

	for _, in := range []string{"feel good comedy", "  feel   good comedy "} {
		v, err := c.Embed(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if len(v) != 2 {
			t.Errorf("got %v", v)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 inner call, got %d", calls.Load())
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewMemoryCache(time.Minute, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "k", vector.Vector{1})
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("expected hit")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expected expiry")
	}
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	m := NewMemoryCache(0, 2)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_ = m.Set(ctx, k, vector.Vector{1})
	}
	if m.Len() != 2 {
		t.Errorf("len = %d, want 2", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "c"); !ok {
		t.Error("latest entry evicted")
	}
}

func TestBadgerCache(t *testing.T) {
	c, err := NewBadgerCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewBadgerCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("miss = %v, %v", ok, err)
	}
	if err := c.Set(ctx, "k", vector.Vector{0.25, -1}); err != nil {
		t.Fatal(err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || v[1] != -1 {
		t.Errorf("hit = %v, %v, %v", v, ok, err)
	}
}

func TestNewCache(t *testing.T) {
	if c, err := NewCache(CacheConfig{}); c != nil || err != nil {
		t.Errorf("empty backend = %v, %v", c, err)
	}
	if _, err := NewCache(CacheConfig{Backend: CacheRedis}); err == nil {
		t.Error("expected error for redis without url")
	}
	if _, err := NewCache(CacheConfig{Backend: "memcached"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
