// Package ingest builds the movie catalog from the upstream API: it walks
// a plan of query facets, aggregates what came back, embeds the survivors
// and swaps them into the catalog store.
package ingest

import (
	"github.com/hubenschmidt/go-movienight/tmdb"
)

// Facet is one query dimension of the fetch plan. PerPage caps how many
// items of each page are kept; zero keeps the whole page.
type Facet struct {
	Name    string     `koanf:"name"`
	Query   tmdb.Query `koanf:"query"`
	Pages   int        `koanf:"pages" validate:"min=1"`
	PerPage int        `koanf:"per_page" validate:"min=0"`
}

type genreFacet struct {
	id    int
	name  string
	limit int
	pages int
}

var defaultGenres = []genreFacet{
	{28, "Action", 12, 2},
	{35, "Comedy", 12, 2},
	{18, "Drama", 12, 2},
	{878, "Science Fiction", 10, 2},
	{27, "Horror", 8, 1},
	{10749, "Romance", 8, 1},
	{53, "Thriller", 10, 2},
	{16, "Animation", 8, 1},
	{80, "Crime", 8, 1},
	{14, "Fantasy", 8, 1},
	{12, "Adventure", 10, 2},
	{10402, "Music", 5, 1},
	{9648, "Mystery", 6, 1},
	{10751, "Family", 6, 1},
	{36, "History", 5, 1},
}

// DefaultPlan returns the standard fetch plan followed by one search facet
// per query in searches.
func DefaultPlan(searches ...string) []Facet {
	plan := []Facet{
		{Name: "popular", Query: tmdb.Query{Kind: tmdb.KindPopular}, Pages: 3, PerPage: 15},
		{Name: "top_rated", Query: tmdb.Query{Kind: tmdb.KindTopRated}, Pages: 2, PerPage: 15},
	}
	for _, g := range defaultGenres {
		plan = append(plan, Facet{
			Name:    g.name,
			Query:   tmdb.Query{Kind: tmdb.KindDiscover, GenreID: g.id},
			Pages:   g.pages,
			PerPage: perPage(g.limit, g.pages),
		})
	}
	plan = append(plan,
		Facet{Name: "now_playing", Query: tmdb.Query{Kind: tmdb.KindNowPlaying}, Pages: 1, PerPage: 10},
		Facet{Name: "upcoming", Query: tmdb.Query{Kind: tmdb.KindUpcoming}, Pages: 1, PerPage: 8},
	)
	for _, s := range searches {
		if s == "" {
			continue
		}
		plan = append(plan, Facet{
			Name:    "search:" + s,
			Query:   tmdb.Query{Kind: tmdb.KindSearch, Text: s},
			Pages:   1,
			PerPage: 10,
		})
	}
	return plan
}

// perPage splits a facet's total limit evenly across its pages, rounding up.
func perPage(limit, pages int) int {
	if pages <= 0 {
		return limit
	}
	return (limit + pages - 1) / pages
}
