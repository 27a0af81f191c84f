// Package supabase stores the catalog in a Supabase (PostgREST) table.
package supabase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/vector"
)

const (
	DefaultTable     = "movies_hf"
	defaultBatchSize = 100
	defaultPageSize  = 1000
)

var _ catalog.Replacer = (*Store)(nil)

// Config holds Supabase connection configuration.
type Config struct {
	URL       string `koanf:"url"`
	APIKey    string `koanf:"key"`
	Table     string `koanf:"table"`
	BatchSize int    `koanf:"batch_size"`
}

// Store implements catalog.Store on a Supabase table. Embeddings are
// written as JSON arrays; rows written by other clients as strings are
// accepted on read.
type Store struct {
	client    *supabase.Client
	table     string
	batchSize int
}

// movieRow mirrors the table columns.
type movieRow struct {
	ID          int64           `json:"id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Embedding   json.RawMessage `json:"embedding"`
	TMDBID      *int64          `json:"tmdb_id,omitempty"`
	PosterURL   string          `json:"poster_url,omitempty"`
	BackdropURL string          `json:"backdrop_url,omitempty"`
	ReleaseDate string          `json:"release_date,omitempty"`
	VoteAverage float64         `json:"vote_average,omitempty"`
	VoteCount   int             `json:"vote_count,omitempty"`
	GenreIDs    []int           `json:"genre_ids,omitempty"`
	Popularity  float64         `json:"popularity,omitempty"`
}

// New creates a new Supabase-backed catalog store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Store{client: client, table: cfg.Table, batchSize: cfg.BatchSize}, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	// PostgREST refuses an unfiltered delete
	_, _, err := s.client.From(s.table).
		Delete("minimal", "").
		Neq("id", "0").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) BulkInsert(ctx context.Context, records []catalog.Record) error {
	for start := 0; start < len(records); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+s.batchSize, len(records))

		rows, err := toRows(records[start:end])
		if err != nil {
			return err
		}
		_, _, err = s.client.From(s.table).
			Insert(rows, false, "", "minimal", "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to insert rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) SelectAll(ctx context.Context) ([]catalog.Record, error) {
	var out []catalog.Record
	for from := 0; ; from += defaultPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rows []movieRow
		_, err := s.client.From(s.table).
			Select("*", "", false).
			Order("id", &postgrest.OrderOpts{Ascending: true}).
			Range(from, from+defaultPageSize-1, "").
			ExecuteTo(&rows)
		if err != nil {
			return nil, fmt.Errorf("failed to select %s: %w", s.table, err)
		}

		for _, r := range rows {
			rec, err := r.record()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if len(rows) < defaultPageSize {
			return out, nil
		}
	}
}

// Replace inserts the new rows before deleting the old ones, so a failed
// insert leaves the previous catalog in place. Readers may see both sets
// between the insert and the delete.
func (s *Store) Replace(ctx context.Context, records []catalog.Record) error {
	prev, err := s.maxID()
	if err != nil {
		return err
	}

	if err := s.BulkInsert(ctx, records); err != nil {
		if derr := s.deleteIDs("gt", prev); derr != nil {
			return fmt.Errorf("%w (rollback: %w)", err, derr)
		}
		return err
	}
	return s.deleteIDs("lte", prev)
}

// maxID returns the highest row id, or 0 for an empty table.
func (s *Store) maxID() (int64, error) {
	var rows []struct {
		ID int64 `json:"id"`
	}
	_, err := s.client.From(s.table).
		Select("id", "", false).
		Order("id", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return 0, fmt.Errorf("failed to read max id of %s: %w", s.table, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].ID, nil
}

func (s *Store) deleteIDs(op string, id int64) error {
	f := s.client.From(s.table).Delete("minimal", "")
	bound := strconv.FormatInt(id, 10)
	if op == "gt" {
		f = f.Gt("id", bound)
	} else {
		f = f.Lte("id", bound)
	}
	if _, _, err := f.Execute(); err != nil {
		return fmt.Errorf("failed to delete %s ids %s %s: %w", s.table, op, bound, err)
	}
	return nil
}

// Close is a no-op; the REST client holds no connection.
func (s *Store) Close() error {
	return nil
}

func toRows(records []catalog.Record) ([]movieRow, error) {
	rows := make([]movieRow, len(records))
	for i, rec := range records {
		emb, err := json.Marshal(rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("marshal embedding for %q: %w", rec.Title, err)
		}
		r := movieRow{Title: rec.Title, Description: rec.Description, Embedding: emb}
		if m := rec.Media; m != nil {
			id := m.ExternalID
			r.TMDBID = &id
			r.PosterURL = m.PosterURL
			r.BackdropURL = m.BackdropURL
			r.ReleaseDate = m.ReleaseDate
			r.VoteAverage = m.VoteAverage
			r.VoteCount = m.VoteCount
			r.GenreIDs = m.GenreIDs
			r.Popularity = m.Popularity
		}
		rows[i] = r
	}
	return rows, nil
}

func (r movieRow) record() (catalog.Record, error) {
	emb, err := vector.DecodeJSON(r.Embedding)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("movie %s: %w", strconv.FormatInt(r.ID, 10), err)
	}

	rec := catalog.Record{
		ID:        r.ID,
		Item:      catalog.Item{Title: r.Title, Description: r.Description},
		Embedding: emb,
	}
	if r.TMDBID != nil {
		rec.Media = &catalog.Media{
			ExternalID:  *r.TMDBID,
			PosterURL:   r.PosterURL,
			BackdropURL: r.BackdropURL,
			ReleaseDate: r.ReleaseDate,
			VoteAverage: r.VoteAverage,
			VoteCount:   r.VoteCount,
			GenreIDs:    r.GenreIDs,
			Popularity:  r.Popularity,
		}
	}
	return rec, nil
}
