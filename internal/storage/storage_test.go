// ABOUTME: Tests for the vector store factory
// ABOUTME: Verifies backend selection and directory creation

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BASF-LSU-Collaborations/ragui/internal/config"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage/sqlite"
)

func TestOpen_SQLiteCreatesCollectionDir(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(sqlite.CollectionPath(cfg.CollectionDir())); err != nil {
		t.Errorf("collection file was not created: %v", err)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Backend != sqlite.Backend || stats.Count != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestOpen_SQLitePersistsAcrossReopen(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	ctx := context.Background()

	store, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.Upsert(ctx, []models.EmbeddingEntry{charmEntryFor("movie_0", models.TypeMovie, 1999, "R", 1, 0)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	_ = store.Close()

	store, err = Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = store.Close() }()

	e, err := store.Get(ctx, "movie_0")
	if err != nil || e == nil {
		t.Fatalf("Get() = %v, %v", e, err)
	}
	if e.Metadata.ReleaseYear != 1999 {
		t.Errorf("ReleaseYear = %d, want 1999", e.Metadata.ReleaseYear)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreBackend = "chroma"

	_, err := Open(context.Background(), cfg, nil)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
