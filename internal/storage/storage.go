// ABOUTME: Vector store contract shared by every collection backend
// ABOUTME: Opens the SQLite, Postgres, or Charm collection named by configuration
package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/BASF-LSU-Collaborations/ragui/internal/charm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/config"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage/postgres"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage/sqlite"
	"go.uber.org/zap"
)

// VectorStore is a persistent collection of embedded movie descriptions.
// Query returns at most topK entries that satisfy filter, ranked by
// descending cosine similarity with ties kept in insertion order.
type VectorStore interface {
	Upsert(ctx context.Context, entries []models.EmbeddingEntry) error
	Query(ctx context.Context, vector []float64, filter models.Filter, topK int) (models.RetrievalResult, error)
	Get(ctx context.Context, id string) (*models.EmbeddingEntry, error)
	Count(ctx context.Context) (int, error)
	Peek(ctx context.Context, limit int) ([]models.EmbeddingEntry, error)
	DeleteExcept(ctx context.Context, keep []string) (int, error)
	Stats(ctx context.Context) (models.StoreStats, error)
	Close() error
}

// Syncer is implemented by backends that replicate to a remote server
type Syncer interface {
	Sync(ctx context.Context) error
}

var (
	_ Syncer      = (*CharmStore)(nil)
	_ VectorStore = (*sqlite.MovieStore)(nil)
	_ VectorStore = (*postgres.Store)(nil)
	_ VectorStore = (*CharmStore)(nil)
)

// Open connects to the configured backend
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (VectorStore, error) {
	logger = logging.OrNop(logger)

	switch cfg.StoreBackend {
	case config.BackendSQLite, "":
		dir := cfg.CollectionDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, models.NewOpError("storage.open", models.ErrStoreUnavailable,
				fmt.Errorf("failed to create directory %s: %w", dir, err))
		}
		s, err := sqlite.OpenMovieStore(ctx, dir)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened sqlite collection", zap.String("dir", dir))
		return s, nil

	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened postgres collection")
		return s, nil

	case config.BackendCharm:
		client, err := charm.NewClient(&charm.Config{
			Host:     cfg.CharmHost,
			DBName:   cfg.CharmDBName,
			AutoSync: true,
		})
		if err != nil {
			return nil, models.NewOpError("storage.open", models.ErrStoreUnavailable, err)
		}
		logger.Debug("opened charm collection", zap.String("location", client.Location()))
		return NewCharmStore(client, logger), nil
	}

	return nil, models.NewOpError("storage.open", models.ErrInvalidInput,
		fmt.Errorf("unknown store backend %q", cfg.StoreBackend))
}
