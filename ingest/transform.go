package ingest

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/tmdb"
)

// Dedupe keeps the first occurrence of each movie id, preserving order.
func Dedupe(movies []tmdb.Movie) []tmdb.Movie {
	seen := make(map[int64]struct{}, len(movies))
	out := make([]tmdb.Movie, 0, len(movies))
	for _, m := range movies {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// FilterConfig sets the quality thresholds. Both are exclusive lower
// bounds: an overview must be longer than MinDescriptionRunes and the vote
// count greater than MinVotes.
type FilterConfig struct {
	MinDescriptionRunes int `koanf:"min_description_runes" validate:"min=0"`
	MinVotes            int `koanf:"min_votes" validate:"min=0"`
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{MinDescriptionRunes: 30, MinVotes: 10}
}

// Filter drops movies without a title, with a short or missing overview,
// or with too few votes.
func Filter(movies []tmdb.Movie, cfg FilterConfig) []tmdb.Movie {
	out := make([]tmdb.Movie, 0, len(movies))
	for _, m := range movies {
		if strings.TrimSpace(m.Title) == "" {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(m.Overview)) <= cfg.MinDescriptionRunes {
			continue
		}
		if m.VoteCount <= cfg.MinVotes {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Score is the composite quality score used to order candidates.
func Score(m tmdb.Movie) float64 {
	var pop float64
	if m.Popularity > 0 {
		pop = math.Log(m.Popularity)
	}
	return m.VoteAverage*0.7 + pop*0.3
}

// Rank returns a copy of movies sorted by descending Score. Ties keep
// their input order.
func Rank(movies []tmdb.Movie) []tmdb.Movie {
	out := slices.Clone(movies)
	slices.SortStableFunc(out, func(a, b tmdb.Movie) int {
		sa, sb := Score(a), Score(b)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Project converts movies into catalog items. imageURL resolves poster and
// backdrop paths; empty paths stay empty.
func Project(movies []tmdb.Movie, imageURL func(string) string) []catalog.Item {
	items := make([]catalog.Item, 0, len(movies))
	for _, m := range movies {
		items = append(items, catalog.Item{
			Title:       strings.TrimSpace(m.Title),
			Description: strings.TrimSpace(m.Overview),
			Media: &catalog.Media{
				ExternalID:  m.ID,
				PosterURL:   imageURL(m.PosterPath),
				BackdropURL: imageURL(m.BackdropPath),
				ReleaseDate: m.ReleaseDate,
				VoteAverage: m.VoteAverage,
				VoteCount:   m.VoteCount,
				GenreIDs:    slices.Clone(m.GenreIDs),
				Popularity:  m.Popularity,
			},
		})
	}
	return items
}
