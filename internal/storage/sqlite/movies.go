// ABOUTME: Movie collection stored in SQLite with BLOB vectors
// ABOUTME: Idempotent upsert by id and filtered cosine-similarity search
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage/sqlfilter"
	"github.com/BASF-LSU-Collaborations/ragui/internal/util"
)

// Backend is the name reported in collection stats
const Backend = "sqlite"

const metaDimension = "dimension"

// MovieStore is a file-backed movie vector collection
type MovieStore struct {
	db *DB
}

// NewMovieStore wraps an open database
func NewMovieStore(db *DB) *MovieStore {
	return &MovieStore{db: db}
}

// OpenMovieStore opens (or creates) the collection in dir
func OpenMovieStore(ctx context.Context, dir string) (*MovieStore, error) {
	db, err := Open(ctx, CollectionPath(dir))
	if err != nil {
		return nil, models.NewOpError("sqlite.open", models.ErrStoreUnavailable, err)
	}
	return NewMovieStore(db), nil
}

// Close closes the underlying database
func (s *MovieStore) Close() error {
	return s.db.Close()
}

// Upsert writes entries in order inside one transaction. Existing ids are
// overwritten. The first write fixes the collection's vector dimension.
func (s *MovieStore) Upsert(ctx context.Context, entries []models.EmbeddingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := dimension(ctx, tx)
	if err != nil {
		return storeErr("upsert", err)
	}
	if dim == 0 {
		dim = len(entries[0].Vector)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_meta (key, value) VALUES (?, ?)`,
			metaDimension, strconv.Itoa(dim)); err != nil {
			return storeErr("upsert", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movies (id, title, content_type, release_year, rating, document, content_hash, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content_type = excluded.content_type,
			release_year = excluded.release_year,
			rating = excluded.rating,
			document = excluded.document,
			content_hash = excluded.content_hash,
			vector = excluded.vector,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return storeErr("upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i, e := range entries {
		if e.ID == "" {
			return models.NewOpError("sqlite.upsert", models.ErrInvalidInput, fmt.Errorf("entry %d has no id", i))
		}
		if len(e.Vector) != dim || dim == 0 {
			return models.NewOpError("sqlite.upsert", models.ErrInvalidInput,
				fmt.Errorf("entry %s: vector dimension %d does not match collection dimension %d", e.ID, len(e.Vector), dim))
		}
		m := e.Metadata
		if _, err := stmt.ExecContext(ctx, e.ID, m.Title, m.Type, m.ReleaseYear, m.Rating,
			e.Document, e.ContentHash, util.VectorToBlob(e.Vector), now); err != nil {
			return storeErr("upsert", fmt.Errorf("entry %s: %w", e.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("upsert", err)
	}
	return nil
}

// Query ranks entries matching filter by cosine similarity to vector.
// An empty result is not an error.
func (s *MovieStore) Query(ctx context.Context, vector []float64, filter models.Filter, topK int) (models.RetrievalResult, error) {
	filter, err := filter.Validate()
	if err != nil {
		return models.RetrievalResult{}, err
	}
	where, args, err := sqlfilter.Build(filter, sqlfilter.Question, 0)
	if err != nil {
		return models.RetrievalResult{}, models.NewOpError("sqlite.query", models.ErrInvalidInput, err)
	}

	dim, err := dimension(ctx, s.db.conn)
	if err != nil {
		return models.RetrievalResult{}, storeErr("query", err)
	}
	if dim != 0 && len(vector) != dim {
		return models.RetrievalResult{}, models.NewOpError("sqlite.query", models.ErrInvalidInput,
			fmt.Errorf("query dimension %d does not match collection dimension %d", len(vector), dim))
	}

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, title, content_type, release_year, rating, document, vector
		FROM movies
		WHERE `+where+`
		ORDER BY rowid`, args...)
	if err != nil {
		return models.RetrievalResult{}, storeErr("query", err)
	}
	defer func() { _ = rows.Close() }()

	var items []models.ScoredMovie
	for rows.Next() {
		var (
			m    models.MovieRecord
			blob []byte
		)
		if err := rows.Scan(&m.ID, &m.Title, &m.Type, &m.ReleaseYear, &m.Rating, &m.Description, &blob); err != nil {
			return models.RetrievalResult{}, storeErr("query", err)
		}
		v, err := util.BlobToVector(blob)
		if err != nil {
			return models.RetrievalResult{}, storeErr("query", fmt.Errorf("entry %s: %w", m.ID, err))
		}
		items = append(items, models.ScoredMovie{Movie: m, Similarity: util.CosineSimilarity(vector, v)})
	}
	if err := rows.Err(); err != nil {
		return models.RetrievalResult{}, storeErr("query", err)
	}

	items = util.RankTopK(items, func(it models.ScoredMovie) float64 { return it.Similarity }, topK)
	return models.RetrievalResult{Items: items}, nil
}

// Get returns the entry with id, or nil when absent
func (s *MovieStore) Get(ctx context.Context, id string) (*models.EmbeddingEntry, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, title, content_type, release_year, rating, document, content_hash, vector
		FROM movies WHERE id = ?`, id)
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
func (s *MovieStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// Peek returns up to limit entries in insertion order
func (s *MovieStore) Peek(ctx context.Context, limit int) ([]models.EmbeddingEntry, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, title, content_type, release_year, rating, document, content_hash, vector
		FROM movies ORDER BY rowid LIMIT ?`, limit)
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
func (s *MovieStore) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM movies`)
	if err != nil {
		return 0, storeErr("delete", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, storeErr("delete", err)
		}
		if _, ok := wanted[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, storeErr("delete", err)
	}
	_ = rows.Close()
	if len(stale) == 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM movies WHERE id = ?`)
	if err != nil {
		return 0, storeErr("delete", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, id := range stale {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return 0, storeErr("delete", fmt.Errorf("entry %s: %w", id, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("delete", err)
	}
	return len(stale), nil
}

// Stats describes the collection
func (s *MovieStore) Stats(ctx context.Context) (models.StoreStats, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return models.StoreStats{}, err
	}
	dim, err := dimension(ctx, s.db.conn)
	if err != nil {
		return models.StoreStats{}, storeErr("stats", err)
	}
	return models.StoreStats{Backend: Backend, Location: s.db.Path(), Count: n, Dimension: dim}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dimension reads the collection dimension; 0 means nothing has been stored yet
func dimension(ctx context.Context, q queryer) (int, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM collection_meta WHERE key = ?`, metaDimension).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.EmbeddingEntry, error) {
	var (
		e    models.EmbeddingEntry
		blob []byte
	)
	if err := row.Scan(&e.ID, &e.Metadata.Title, &e.Metadata.Type, &e.Metadata.ReleaseYear,
		&e.Metadata.Rating, &e.Document, &e.ContentHash, &blob); err != nil {
		return nil, err
	}
	v, err := util.BlobToVector(blob)
	if err != nil {
		return nil, err
	}
	e.Vector = v
	return &e, nil
}

func storeErr(op string, err error) error {
	return models.NewOpError("sqlite."+op, models.ErrStoreUnavailable, err)
}
