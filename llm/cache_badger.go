package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hubenschmidt/go-movienight/vector"
)

// BadgerCache persists embeddings on local disk across restarts.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

func NewBadgerCache(dir string, ttl time.Duration) (*BadgerCache, error) {
	if dir == "" {
		dir = "data/embed-cache"
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerCache{db: db, ttl: ttl}, nil
}

func (c *BadgerCache) Get(ctx context.Context, key string) (vector.Vector, bool, error) {
	var v vector.Vector
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return v.UnmarshalBinary(val)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	return v, true, nil
}

func (c *BadgerCache) Set(ctx context.Context, key string, v vector.Vector) error {
	data, _ := v.MarshalBinary()
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("badger set: %w", err)
		}
		return nil
	})
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
