// ABOUTME: Movie collection stored in Postgres with the pgvector extension
// ABOUTME: Similarity and filtering run in SQL; vectors are pgvector columns
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage/sqlfilter"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Backend is the name reported in collection stats
const Backend = "postgres"

// Schema creates the collection table. The vector column has no fixed width
// so one table can serve any embedding model; the dimension is checked on write.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS movies (
	id           TEXT PRIMARY KEY,
	seq          BIGSERIAL,
	title        TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	release_year INTEGER NOT NULL DEFAULT -1,
	rating       TEXT NOT NULL DEFAULT '',
	document     TEXT NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	embedding    vector NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_movies_year ON movies(release_year);
CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies(rating);
`

const upsertSQL = `
INSERT INTO movies (id, title, content_type, release_year, rating, document, content_hash, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	content_type = EXCLUDED.content_type,
	release_year = EXCLUDED.release_year,
	rating = EXCLUDED.rating,
	document = EXCLUDED.document,
	content_hash = EXCLUDED.content_hash,
	embedding = EXCLUDED.embedding,
	updated_at = now()`

const selectColumns = `id, title, content_type, release_year, rating, document, content_hash, embedding`

// Store is a pgvector-backed movie collection
type Store struct {
	db       *sql.DB
	location string
}

// Open connects with a lib/pq DSN and ensures the schema exists
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, models.NewOpError("postgres.open", models.ErrStoreUnavailable, err)
	}
	s := NewWithDB(db, redactDSN(dsn))
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection pool
func NewWithDB(db *sql.DB, location string) *Store {
	return &Store{db: db, location: location}
}

// Init verifies connectivity and creates the schema
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return storeErr("schema", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes entries in order in one transaction, overwriting existing ids
func (s *Store) Upsert(ctx context.Context, entries []models.EmbeddingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return storeErr("upsert", err)
	}
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for i, e := range entries {
		if e.ID == "" {
			return models.NewOpError("postgres.upsert", models.ErrInvalidInput, fmt.Errorf("entry %d has no id", i))
		}
		if len(e.Vector) != dim || dim == 0 {
			return models.NewOpError("postgres.upsert", models.ErrInvalidInput,
				fmt.Errorf("entry %s: vector dimension %d does not match collection dimension %d", e.ID, len(e.Vector), dim))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		m := e.Metadata
		if _, err := tx.ExecContext(ctx, upsertSQL, e.ID, m.Title, m.Type, m.ReleaseYear, m.Rating,
			e.Document, e.ContentHash, pgvector.NewVector(toFloat32(e.Vector))); err != nil {
			return storeErr("upsert", fmt.Errorf("entry %s: %w", e.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("upsert", err)
	}
	return nil
}

// Query returns the topK nearest entries that satisfy filter
func (s *Store) Query(ctx context.Context, vector []float64, filter models.Filter, topK int) (models.RetrievalResult, error) {
	filter, err := filter.Validate()
	if err != nil {
		return models.RetrievalResult{}, err
	}
	// $1 is the query vector
	where, args, err := sqlfilter.Build(filter, sqlfilter.Dollar, 1)
	if err != nil {
		return models.RetrievalResult{}, models.NewOpError("postgres.query", models.ErrInvalidInput, err)
	}
	if topK <= 0 {
		topK = 5
	}

	query := fmt.Sprintf(`
		SELECT id, title, content_type, release_year, rating, document, 1 - (embedding <=> $1) AS similarity
		FROM movies
		WHERE %s
		ORDER BY embedding <=> $1, seq
		LIMIT %d`, where, topK)

	allArgs := append([]any{pgvector.NewVector(toFloat32(vector))}, args...)
	rows, err := s.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return models.RetrievalResult{}, storeErr("query", err)
	}
	defer func() { _ = rows.Close() }()

	var items []models.ScoredMovie
	for rows.Next() {
		var it models.ScoredMovie
		m := &it.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Type, &m.ReleaseYear, &m.Rating, &m.Description, &it.Similarity); err != nil {
			return models.RetrievalResult{}, storeErr("query", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return models.RetrievalResult{}, storeErr("query", err)
	}
	return models.RetrievalResult{Items: items}, nil
}

// Get returns the entry with id, or nil when absent
func (s *Store) Get(ctx context.Context, id string) (*models.EmbeddingEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM movies WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	return e, nil
}

// Count returns the number of stored entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// Peek returns up to limit entries in insertion order
func (s *Store) Peek(ctx context.Context, limit int) ([]models.EmbeddingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM movies ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, storeErr("peek", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.EmbeddingEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storeErr("peek", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("peek", err)
	}
	return out, nil
}

// DeleteExcept removes every entry whose id is not in keep and returns how
// many were removed
func (s *Store) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE NOT (id = ANY($1))`, pq.Array(keep))
	if err != nil {
		return 0, storeErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete", err)
	}
	return int(n), nil
}

// Stats describes the collection
func (s *Store) Stats(ctx context.Context) (models.StoreStats, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return models.StoreStats{}, err
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return models.StoreStats{}, storeErr("stats", err)
	}
	return models.StoreStats{Backend: Backend, Location: s.location, Count: n, Dimension: dim}, nil
}

// dimension reads the width of any stored vector; 0 means the table is empty
func (s *Store) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT vector_dims(embedding) FROM movies LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.EmbeddingEntry, error) {
	var (
		e   models.EmbeddingEntry
		vec pgvector.Vector
	)
	if err := row.Scan(&e.ID, &e.Metadata.Title, &e.Metadata.Type, &e.Metadata.ReleaseYear,
		&e.Metadata.Rating, &e.Document, &e.ContentHash, &vec); err != nil {
		return nil, err
	}
	e.Vector = toFloat64(vec.Slice())
	return &e, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// redactDSN hides credentials when the DSN is shown in stats
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return "postgres"
}

func storeErr(op string, err error) error {
	return models.NewOpError("postgres."+op, models.ErrStoreUnavailable, err)
}
