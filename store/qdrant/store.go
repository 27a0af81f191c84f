// Package qdrant stores the catalog as points in a Qdrant collection.
// Ranking still scores every point in the application; the collection is
// only used as durable storage.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/vector"
)

const (
	DefaultCollection = "movies"
	scrollPageSize    = 256
	upsertBatchSize   = 128
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g. "http://localhost:6334").
	URL        string `koanf:"url"`
	APIKey     string `koanf:"api_key"`
	Collection string `koanf:"collection"`
}

// Store implements catalog.Store on a Qdrant collection. Point ids are
// assigned sequentially from 1 so scrolling returns insertion order.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// New connects to Qdrant and ensures the collection exists with the
// configured dimension.
func New(ctx context.Context, cfg Config, dimension int) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("qdrant store: dimension must be positive, got %d", dimension)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, collection: cfg.Collection, dimension: dimension}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func parseURL(raw string) (host string, port int, useTLS bool, err error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port = 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}
	return s.createCollection(ctx)
}

func (s *Store) createCollection(ctx context.Context) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

// ClearAll drops and recreates the collection.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", s.collection, err)
	}
	return s.createCollection(ctx)
}

func (s *Store) BulkInsert(ctx context.Context, records []catalog.Record) error {
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	next := uint64(count) + 1

	wait := true
	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, rec := range records[start:end] {
			points = append(points, toPoint(next, rec))
			next++
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) SelectAll(ctx context.Context) ([]catalog.Record, error) {
	var out []catalog.Record
	limit := uint32(scrollPageSize)
	var offset *qdrant.PointId

	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll %s: %w", s.collection, err)
		}

		for _, p := range points {
			out = append(out, fromPoint(p))
		}
		if len(points) < scrollPageSize {
			return out, nil
		}
		// offsets are inclusive and ids are dense
		last := points[len(points)-1].GetId().GetNum()
		offset = qdrant.NewIDNum(last + 1)
	}
}

func (s *Store) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.collection, err)
	}
	return int(n), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toPoint(id uint64, rec catalog.Record) *qdrant.PointStruct {
	payload := map[string]any{
		"title":       rec.Title,
		"description": rec.Description,
	}
	if m := rec.Media; m != nil {
		genres := make([]any, len(m.GenreIDs))
		for i, g := range m.GenreIDs {
			genres[i] = int64(g)
		}
		payload["tmdb_id"] = m.ExternalID
		payload["poster_url"] = m.PosterURL
		payload["backdrop_url"] = m.BackdropURL
		payload["release_date"] = m.ReleaseDate
		payload["vote_average"] = m.VoteAverage
		payload["vote_count"] = int64(m.VoteCount)
		payload["genre_ids"] = genres
		payload["popularity"] = m.Popularity
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(id),
		Vectors: qdrant.NewVectors(toFloat32(rec.Embedding)...),
		Payload: qdrant.NewValueMap(payload),
	}
}

func fromPoint(p *qdrant.RetrievedPoint) catalog.Record {
	payload := p.GetPayload()
	rec := catalog.Record{
		ID: int64(p.GetId().GetNum()),
		Item: catalog.Item{
			Title:       payload["title"].GetStringValue(),
			Description: payload["description"].GetStringValue(),
		},
		Embedding: fromFloat32(denseData(p.GetVectors().GetVector())),
	}

	if _, ok := payload["tmdb_id"]; !ok {
		return rec
	}

	m := &catalog.Media{
		ExternalID:  payload["tmdb_id"].GetIntegerValue(),
		PosterURL:   payload["poster_url"].GetStringValue(),
		BackdropURL: payload["backdrop_url"].GetStringValue(),
		ReleaseDate: payload["release_date"].GetStringValue(),
		VoteAverage: payload["vote_average"].GetDoubleValue(),
		VoteCount:   int(payload["vote_count"].GetIntegerValue()),
		Popularity:  payload["popularity"].GetDoubleValue(),
	}
	for _, v := range payload["genre_ids"].GetListValue().GetValues() {
		m.GenreIDs = append(m.GenreIDs, int(v.GetIntegerValue()))
	}
	rec.Media = m
	return rec
}

// denseData reads the dense oneof, falling back to the deprecated flat
// field for servers that still fill only that.
func denseData(v *qdrant.VectorOutput) []float32 {
	if d := v.GetDense(); d != nil {
		return d.GetData()
	}
	return v.GetData()
}

func toFloat32(v vector.Vector) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func fromFloat32(v []float32) vector.Vector {
	out := make(vector.Vector, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
