package server

import (
	"github.com/hubenschmidt/go-movienight/catalog"
)

type AnswerRequest struct {
	Person      int    `json:"person"`
	Description string `json:"description" validate:"max=2000"`
}

type RecommendRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"max=20,dive"`
}

func (r RecommendRequest) toAnswers() []catalog.Answer {
	out := make([]catalog.Answer, len(r.Answers))
	for i, a := range r.Answers {
		out[i] = catalog.Answer{Person: a.Person, Description: a.Description}
	}
	return out
}

// Recommendation is one ranked movie. Upstream metadata is flattened onto
// the item and omitted entirely for movies that have none.
type Recommendation struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Similarity  float64  `json:"similarity"`
	TMDBID      int64    `json:"tmdb_id,omitempty"`
	PosterURL   string   `json:"poster_url,omitempty"`
	BackdropURL string   `json:"backdrop_url,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	VoteAverage *float64 `json:"vote_average,omitempty"`
	VoteCount   *int     `json:"vote_count,omitempty"`
	GenreIDs    []int    `json:"genre_ids,omitempty"`
	Popularity  *float64 `json:"popularity,omitempty"`
}

func newRecommendation(r catalog.RankedResult) Recommendation {
	out := Recommendation{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Similarity:  r.Similarity,
	}
	if m := r.Media; m != nil && m.ExternalID != 0 {
		out.TMDBID = m.ExternalID
		out.PosterURL = m.PosterURL
		out.BackdropURL = m.BackdropURL
		out.ReleaseDate = m.ReleaseDate
		out.VoteAverage = &m.VoteAverage
		out.VoteCount = &m.VoteCount
		out.GenreIDs = m.GenreIDs
		out.Popularity = &m.Popularity
	}
	return out
}

type RecommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	TotalScored     int              `json:"totalScored"`
	Message         string           `json:"message"`
	Backend         string           `json:"backend"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	EmbeddingModel string `json:"embedding_model"`
	Store          string `json:"store"`
	CatalogSize    int    `json:"catalog_size"`
	CatalogError   string `json:"catalog_error,omitempty"`
}

// IngestResponse acknowledges a started run; poll GET /api/ingest for
// its outcome.
type IngestResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}
