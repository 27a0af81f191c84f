package ingest

import (
	"strings"
	"testing"

	"github.com/hubenschmidt/go-movienight/tmdb"
)

func movie(id int64, title string, votes int, avg, pop float64) tmdb.Movie {
	return tmdb.Movie{
		ID:          id,
		Title:       title,
		Overview:    "An overview that is comfortably longer than thirty characters.",
		VoteCount:   votes,
		VoteAverage: avg,
		Popularity:  pop,
	}
}

func TestDedupe_FirstWins(t *testing.T) {
	in := []tmdb.Movie{
		movie(1, "first", 100, 7, 10),
		movie(2, "second", 100, 7, 10),
		movie(1, "duplicate", 100, 9, 99),
	}
	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(out))
	}
	if out[0].Title != "first" || out[1].Title != "second" {
		t.Errorf("unexpected order or winner: %+v", out)
	}
}

func TestFilter_Thresholds(t *testing.T) {
	cfg := DefaultFilterConfig()
	cases := []struct {
		name     string
		overview string
		title    string
		votes    int
		keep     bool
	}{
		{"ten votes dropped", strings.Repeat("a", 50), "t", 10, false},
		{"eleven votes kept", strings.Repeat("a", 50), "t", 11, true},
		{"thirty chars dropped", strings.Repeat("a", 30), "t", 100, false},
		{"thirty one chars kept", strings.Repeat("a", 31), "t", 11, true},
		{"padding does not count", "  " + strings.Repeat("a", 30) + "  ", "t", 100, false},
		{"blank title dropped", strings.Repeat("a", 50), "   ", 100, false},
		{"missing overview dropped", "", "t", 100, false},
		{"multibyte runes counted once", strings.Repeat("é", 31), "t", 100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := tmdb.Movie{ID: 1, Title: tc.title, Overview: tc.overview, VoteCount: tc.votes}
			got := len(Filter([]tmdb.Movie{m}, cfg)) == 1
			if got != tc.keep {
				t.Errorf("keep = %v, want %v", got, tc.keep)
			}
		})
	}
}

func TestRank_OrderAndStability(t *testing.T) {
	in := []tmdb.Movie{
		movie(1, "low", 100, 5, 1),
		movie(2, "tie-a", 100, 7, 1),
		movie(3, "high", 100, 9, 100),
		movie(4, "tie-b", 100, 7, 1),
		movie(5, "zero popularity", 100, 7, 0),
	}
	out := Rank(in)
	want := []string{"high", "tie-a", "tie-b", "zero popularity", "low"}
	for i, w := range want {
		if out[i].Title != w {
			t.Fatalf("position %d = %q, want %q (got %v)", i, out[i].Title, w, titles(out))
		}
	}
	if in[0].Title != "low" {
		t.Error("Rank mutated its input")
	}
}

func TestScore_NonPositivePopularity(t *testing.T) {
	if got := Score(movie(1, "x", 1, 10, 0)); got != 7 {
		t.Errorf("Score = %v, want 7", got)
	}
	if got := Score(movie(1, "x", 1, 10, -3)); got != 7 {
		t.Errorf("Score = %v, want 7", got)
	}
}

func TestProject(t *testing.T) {
	m := movie(603, " The Matrix ", 100, 8.2, 80)
	m.PosterPath = "/p.jpg"
	m.GenreIDs = []int{28, 878}

	items := Project([]tmdb.Movie{m}, func(p string) string {
		if p == "" {
			return ""
		}
		return "https://image.tmdb.org/t/p/w500" + p
	})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Title != "The Matrix" || it.ExternalID() != 603 {
		t.Errorf("unexpected item %+v", it)
	}
	if it.Media.PosterURL != "https://image.tmdb.org/t/p/w500/p.jpg" || it.Media.BackdropURL != "" {
		t.Errorf("unexpected image urls %+v", it.Media)
	}
	m.GenreIDs[0] = 1
	if it.Media.GenreIDs[0] != 28 {
		t.Error("Project shares the genre slice with its input")
	}
}

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan("heist", "")
	if len(plan) != 2+15+2+1 {
		t.Fatalf("expected 20 facets, got %d", len(plan))
	}
	if plan[0].Name != "popular" || plan[0].Pages != 3 || plan[0].PerPage != 15 {
		t.Errorf("unexpected first facet %+v", plan[0])
	}

	byName := map[string]Facet{}
	for _, f := range plan {
		byName[f.Name] = f
	}
	if f := byName["Action"]; f.Pages != 2 || f.PerPage != 6 || f.Query.GenreID != 28 {
		t.Errorf("unexpected Action facet %+v", f)
	}
	if f := byName["Music"]; f.Pages != 1 || f.PerPage != 5 {
		t.Errorf("unexpected Music facet %+v", f)
	}
	if f := byName["Science Fiction"]; f.PerPage != 5 {
		t.Errorf("unexpected Science Fiction facet %+v", f)
	}
	if f := byName["search:heist"]; f.Query.Kind != tmdb.KindSearch || f.Query.Text != "heist" {
		t.Errorf("unexpected search facet %+v", f)
	}
}

func titles(ms []tmdb.Movie) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Title
	}
	return out
}
