package store

import (
	"context"
	"sync"

	"github.com/hubenschmidt/go-movienight/catalog"
)

// MemoryStore is an in-memory catalog for development and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	records []catalog.Record
	nextID  int64
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

func (s *MemoryStore) BulkInsert(ctx context.Context, records []catalog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(records)
	return nil
}

// Replace swaps the catalog under one lock.
func (s *MemoryStore) Replace(ctx context.Context, records []catalog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.appendLocked(records)
	return nil
}

func (s *MemoryStore) appendLocked(records []catalog.Record) {
	for _, r := range records {
		r.ID = s.nextID
		s.nextID++
		r.Embedding = r.Embedding.Clone()
		s.records = append(s.records, r)
	}
}

func (s *MemoryStore) SelectAll(ctx context.Context) ([]catalog.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Record, len(s.records))
	for i, r := range s.records {
		r.Embedding = r.Embedding.Clone()
		out[i] = r
	}
	return out, nil
}

// Count returns the number of records in the store.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Close is a no-op for in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
