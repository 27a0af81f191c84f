package tmdb

import (
	"fmt"
	"net/url"
	"strconv"
)

// Movie is one entry of a TMDB result page.
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	OriginalLanguage string  `json:"original_language"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	GenreIDs         []int   `json:"genre_ids"`
	Popularity       float64 `json:"popularity"`
	Adult            bool    `json:"adult"`
	Video            bool    `json:"video"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MovieDetails is the /movie/{id} payload.
type MovieDetails struct {
	Movie
	Runtime int     `json:"runtime"`
	Tagline string  `json:"tagline"`
	Genres  []Genre `json:"genres"`
}

type pageResponse struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

type genreResponse struct {
	Genres []Genre `json:"genres"`
}

type Kind string

const (
	KindPopular    Kind = "popular"
	KindTopRated   Kind = "top_rated"
	KindNowPlaying Kind = "now_playing"
	KindUpcoming   Kind = "upcoming"
	KindDiscover   Kind = "discover"
	KindSearch     Kind = "search"
)

// Query names one list endpoint. GenreID applies to KindDiscover, Text to
// KindSearch.
type Query struct {
	Kind    Kind   `koanf:"kind"`
	GenreID int    `koanf:"genre_id"`
	Text    string `koanf:"text"`
}

func (q Query) String() string {
	switch q.Kind {
	case KindDiscover:
		return fmt.Sprintf("genre:%d", q.GenreID)
	case KindSearch:
		return "search:" + q.Text
	default:
		return string(q.Kind)
	}
}

func (q Query) endpoint() (string, url.Values, error) {
	params := url.Values{}
	switch q.Kind {
	case KindPopular, KindTopRated, KindNowPlaying, KindUpcoming:
		return "/movie/" + string(q.Kind), params, nil
	case KindDiscover:
		if q.GenreID <= 0 {
			return "", nil, fmt.Errorf("discover query needs a genre id")
		}
		params.Set("with_genres", strconv.Itoa(q.GenreID))
		params.Set("sort_by", "popularity.desc")
		return "/discover/movie", params, nil
	case KindSearch:
		if q.Text == "" {
			return "", nil, fmt.Errorf("search query needs text")
		}
		params.Set("query", q.Text)
		return "/search/movie", params, nil
	default:
		return "", nil, fmt.Errorf("unknown query kind %q", q.Kind)
	}
}
