package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hubenschmidt/go-movienight/catalog"
	"github.com/hubenschmidt/go-movienight/store/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements catalog.Store on PostgreSQL with a pgvector
// embedding column. Scoring stays in the application, so no ANN index is
// created.
type PostgresStore struct {
	db        *sql.DB
	dimension int
}

// NewPostgresStore connects, pings and migrates. dimension fixes the
// vector column width.
func NewPostgresStore(ctx context.Context, dsn string, dimension int) (*PostgresStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("postgres store: dimension must be positive, got %d", dimension)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runPostgresMigrations(ctx, db, dimension); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db, dimension: dimension}, nil
}

func runPostgresMigrations(ctx context.Context, db *sql.DB, dimension int) error {
	data, err := migrations.Postgres.ReadFile("postgres/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	stmt := strings.ReplaceAll(string(data), migrations.DimensionPlaceholder, strconv.Itoa(dimension))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

const postgresInsert = `
	INSERT INTO movies (
		title, description, tmdb_id, poster_url, backdrop_url, release_date,
		vote_average, vote_count, genre_ids, popularity, embedding
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11::vector)`

func (s *PostgresStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM movies`); err != nil {
		return fmt.Errorf("clear movies: %w", err)
	}
	return nil
}

func (s *PostgresStore) BulkInsert(ctx context.Context, records []catalog.Record) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return postgresInsertAll(ctx, tx, records)
	})
}

// Replace clears and reloads the catalog in one transaction, so readers
// see either the old or the new catalog.
func (s *PostgresStore) Replace(ctx context.Context, records []catalog.Record) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM movies`); err != nil {
			return fmt.Errorf("clear movies: %w", err)
		}
		return postgresInsertAll(ctx, tx, records)
	})
}

func postgresInsertAll(ctx context.Context, tx *sql.Tx, records []catalog.Record) error {
	stmt, err := tx.PrepareContext(ctx, postgresInsert)
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

func (s *PostgresStore) SelectAll(ctx context.Context) ([]catalog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, tmdb_id, poster_url, backdrop_url,
			release_date, vote_average, vote_count, genre_ids::text, popularity, embedding::text
		FROM movies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
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
