// Package catalog defines the persisted movie records and the storage
// contract shared by ingestion and recommendation.
package catalog

import (
	"context"

	"github.com/hubenschmidt/go-movienight/vector"
)

// Media holds the attributes that only exist for items with an upstream
// identifier. A nil *Media means none of them are known.
type Media struct {
	ExternalID  int64   `json:"tmdb_id"`
	PosterURL   string  `json:"poster_url,omitempty"`
	BackdropURL string  `json:"backdrop_url,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	GenreIDs    []int   `json:"genre_ids,omitempty"`
	Popularity  float64 `json:"popularity"`
}

// Item is a movie before it has been embedded.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Media       *Media `json:"media,omitempty"`
}

// ExternalID returns the upstream identifier, or 0 when absent.
func (it Item) ExternalID() int64 {
	if it.Media == nil {
		return 0
	}
	return it.Media.ExternalID
}

// EmbeddingText is the text embedded for an item.
func (it Item) EmbeddingText() string {
	return it.Title + ". " + it.Description
}

// Record is an embedded catalog entry.
type Record struct {
	Item

	ID        int64         `json:"id"`
	Embedding vector.Vector `json:"-"`
}

// Answer is one group member's free-text preference.
type Answer struct {
	Person      int    `json:"person"`
	Description string `json:"description"`
}

// RankedResult pairs a record with its similarity to the group query.
type RankedResult struct {
	Record
	Similarity float64 `json:"similarity"`
}

// Store persists the catalog.
type Store interface {
	// ClearAll removes every record.
	ClearAll(ctx context.Context) error

	// BulkInsert appends records. IDs are assigned by the store.
	BulkInsert(ctx context.Context, records []Record) error

	// SelectAll returns the whole catalog in insertion order.
	SelectAll(ctx context.Context) ([]Record, error)

	// Close releases resources.
	Close() error
}

// Replacer is implemented by stores that can swap the catalog atomically.
type Replacer interface {
	Replace(ctx context.Context, records []Record) error
}

// Counter is implemented by stores that can count without loading rows.
type Counter interface {
	Count(ctx context.Context) (int, error)
}
