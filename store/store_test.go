package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/vector"
)

func sampleRecords() []catalog.Record {
	return []catalog.Record{
		{
			Item: catalog.Item{
				Title:       "The Matrix",
				Description: "A hacker discovers reality is a simulation.",
				Media: &catalog.Media{
					ExternalID:  603,
					PosterURL:   "https://image.tmdb.org/t/p/w500/p.jpg",
					ReleaseDate: "1999-03-30",
					VoteAverage: 8.2,
					VoteCount:   25000,
					GenreIDs:    []int{28, 878},
					Popularity:  80.5,
				},
			},
			Embedding: vector.Vector{0.1, 0.2, 0.3},
		},
		{
			Item:      catalog.Item{Title: "Seed Film", Description: "A film with no upstream id."},
			Embedding: vector.Vector{0.3, 0.2, 0.1},
		},
	}
}

// exerciseStore runs the shared contract against any catalog.Store.
func exerciseStore(t *testing.T, s catalog.Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.BulkInsert(ctx, sampleRecords()); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	got, err := s.SelectAll(ctx)
	if err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Title != "The Matrix" || got[1].Title != "Seed Film" {
		t.Errorf("insertion order lost: %q, %q", got[0].Title, got[1].Title)
	}
	if got[0].ID == 0 || got[0].ID == got[1].ID {
		t.Errorf("ids not assigned: %d, %d", got[0].ID, got[1].ID)
	}

	m := got[0].Media
	if m == nil || m.ExternalID != 603 || m.VoteCount != 25000 || len(m.GenreIDs) != 2 || m.GenreIDs[1] != 878 {
		t.Errorf("media not round-tripped: %+v", m)
	}
	if got[1].Media != nil {
		t.Errorf("expected nil media, got %+v", got[1].Media)
	}
	if len(got[0].Embedding) != 3 || got[0].Embedding[2] != 0.3 {
		t.Errorf("embedding = %v", got[0].Embedding)
	}

	if err := catalog.Replace(ctx, s, sampleRecords()[:1], 3); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	n, err := catalog.Count(ctx, s)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 record after replace, got %d", n)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	got, _ = s.SelectAll(ctx)
	if len(got) != 0 {
		t.Errorf("expected empty catalog, got %d", len(got))
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_DoesNotAlias(t *testing.T) {
	s := NewMemoryStore()
	recs := sampleRecords()
	_ = s.BulkInsert(context.Background(), recs)
	recs[0].Embedding[0] = 99

	got, _ := s.SelectAll(context.Background())
	if got[0].Embedding[0] == 99 {
		t.Error("store aliased caller's embedding")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sub", "movies.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestResolveDriver(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{}, DriverSQLite},
		{Config{DSN: "postgres://u@h/db"}, DriverPostgres},
		{Config{DSN: "postgresql://u@h/db"}, DriverPostgres},
		{Config{DSN: "/tmp/x.db"}, DriverSQLite},
		{Config{Driver: DriverMemory, DSN: "postgres://x"}, DriverMemory},
	}
	for _, tt := range tests {
		if got := tt.cfg.ResolveDriver(); got != tt.want {
			t.Errorf("ResolveDriver(%+v) = %s, want %s", tt.cfg, got, tt.want)
		}
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), Config{Driver: "mongo"}, 3); err == nil {
		t.Error("expected error for unknown driver")
	}
}
