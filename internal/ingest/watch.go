// ABOUTME: Watches the raw dataset file and re-runs ingestion when it changes
// ABOUTME: Events are debounced so one save triggers one run
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last write before a run starts
const DefaultDebounce = 500 * time.Millisecond

// Watch calls run each time path is created or written, until ctx ends. The
// parent directory is watched so editors that replace the file are noticed.
// A failed run is logged and watching continues.
func Watch(ctx context.Context, path string, debounce time.Duration, run func(context.Context) error, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("watch")
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching dataset", zap.String("path", abs))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			logger.Info("dataset changed, re-running ingestion")
			if err := run(ctx); err != nil {
				logger.Error("ingestion failed", zap.Error(err))
			}
		}
	}
}
