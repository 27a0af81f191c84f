package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/store/migrations"
	_ "modernc.org/sqlite"
)

const defaultSQLitePath = "data/movienight.db"

// SQLiteStore implements catalog.Store using SQLite. Embeddings are kept
// in pgvector text form so both SQL stores share one codec.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = defaultSQLitePath
	}

	dir := filepath.Dir(dsn)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between replace and readers
	db.SetMaxOpenConns(1)

	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runSQLiteMigrations(db *sql.DB) error {
	data, err := migrations.SQLite.ReadFile("sqlite/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = db.Exec(string(data))
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

const sqliteInsert = `
	INSERT INTO movies (
		title, description, tmdb_id, poster_url, backdrop_url, release_date,
		vote_average, vote_count, genre_ids, popularity, embedding
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM movies`); err != nil {
		return fmt.Errorf("clear movies: %w", err)
	}
	return nil
}

func (s *SQLiteStore) BulkInsert(ctx context.Context, records []catalog.Record) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return sqliteInsertAll(ctx, tx, records)
	})
}

// Replace clears and reloads the catalog in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, records []catalog.Record) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM movies`); err != nil {
			return fmt.Errorf("clear movies: %w", err)
		}
		return sqliteInsertAll(ctx, tx, records)
	})
}

func sqliteInsertAll(ctx context.Context, tx *sql.Tx, records []catalog.Record) error {
	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		r, err := toRow(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.args()...); err != nil {
			return fmt.Errorf("insert movie %q: %w", rec.Title, err)
		}
	}
	return nil
}

func (s *SQLiteStore) SelectAll(ctx context.Context) ([]catalog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, tmdb_id, poster_url, backdrop_url,
			release_date, vote_average, vote_count, genre_ids, popularity, embedding
		FROM movies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
