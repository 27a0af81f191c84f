// Package store provides catalog.Store implementations backed by memory,
// SQLite and PostgreSQL, plus a factory that picks one from configuration.
package store

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/vector"
)

// row is the flattened column layout shared by the SQL stores.
type row struct {
	ID          int64
	Title       string
	Description string
	TMDBID      sql.NullInt64
	PosterURL   string
	BackdropURL string
	ReleaseDate string
	VoteAverage float64
	VoteCount   int
	GenreIDs    string
	Popularity  float64
	Embedding   string
}

func (r *row) dest() []any {
	return []any{
		&r.ID, &r.Title, &r.Description, &r.TMDBID, &r.PosterURL, &r.BackdropURL,
		&r.ReleaseDate, &r.VoteAverage, &r.VoteCount, &r.GenreIDs, &r.Popularity, &r.Embedding,
	}
}

func toRow(rec catalog.Record) (row, error) {
	r := row{
		Title:       rec.Title,
		Description: rec.Description,
		GenreIDs:    "[]",
		Embedding:   vector.Format(rec.Embedding),
	}
	if m := rec.Media; m != nil {
		r.TMDBID = sql.NullInt64{Int64: m.ExternalID, Valid: true}
		r.PosterURL = m.PosterURL
		r.BackdropURL = m.BackdropURL
		r.ReleaseDate = m.ReleaseDate
		r.VoteAverage = m.VoteAverage
		r.VoteCount = m.VoteCount
		r.Popularity = m.Popularity
		if len(m.GenreIDs) > 0 {
			b, err := json.Marshal(m.GenreIDs)
			if err != nil {
				return r, fmt.Errorf("marshal genre ids: %w", err)
			}
			r.GenreIDs = string(b)
		}
	}
	return r, nil
}

func (r row) args() []any {
	return []any{
		r.Title, r.Description, r.TMDBID, r.PosterURL, r.BackdropURL, r.ReleaseDate,
		r.VoteAverage, r.VoteCount, r.GenreIDs, r.Popularity, r.Embedding,
	}
}

func (r row) record() (catalog.Record, error) {
	emb, err := vector.Parse(r.Embedding)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("record %d: %w", r.ID, err)
	}

	rec := catalog.Record{
		ID:        r.ID,
		Item:      catalog.Item{Title: r.Title, Description: r.Description},
		Embedding: emb,
	}
	if !r.TMDBID.Valid {
		return rec, nil
	}

	m := &catalog.Media{
		ExternalID:  r.TMDBID.Int64,
		PosterURL:   r.PosterURL,
		BackdropURL: r.BackdropURL,
		ReleaseDate: r.ReleaseDate,
		VoteAverage: r.VoteAverage,
		VoteCount:   r.VoteCount,
		Popularity:  r.Popularity,
	}
	if r.GenreIDs != "" && r.GenreIDs != "[]" {
		if err := json.Unmarshal([]byte(r.GenreIDs), &m.GenreIDs); err != nil {
			return rec, fmt.Errorf("record %d genre ids: %w", r.ID, err)
		}
	}
	rec.Media = m
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecords(rows *sql.Rows) ([]catalog.Record, error) {
	var out []catalog.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(s scanner) (catalog.Record, error) {
	var r row
	if err := s.Scan(r.dest()...); err != nil {
		return catalog.Record{}, fmt.Errorf("scan movie: %w", err)
	}
	return r.record()
}
