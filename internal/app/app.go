// ABOUTME: Builds the service graph from configuration: LLM client, cache, store, pipeline, sessions
// ABOUTME: Shared by the CLI, the MCP stdio server, and the benchmark runner
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/BASF-LSU-Collaborations/ragui/internal/cluster"
	"github.com/BASF-LSU-Collaborations/ragui/internal/config"
	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/embedcache"
	"github.com/BASF-LSU-Collaborations/ragui/internal/ingest"
	"github.com/BASF-LSU-Collaborations/ragui/internal/llm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/session"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage"
	"go.uber.org/zap"
)

// App is a fully wired service
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	LLM      *llm.OpenAIClient
	Store    storage.VectorStore
	Pipeline *core.Pipeline
	Sessions *session.Registry

	closers []func() error
}

// New wires every component. It needs an OpenAI key.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	client, err := llm.NewOpenAIClient(llm.ConfigFrom(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	a, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.LLM = client

	var embedder core.Embedder = client
	if cfg.RedisAddr != "" {
		cache, err := embedcache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisTTL)
		if err != nil {
			// The cache is optional; run without it
			logger.Warn("embedding cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			a.closers = append(a.closers, cache.Close)
			embedder = embedcache.New(client, cache, cfg.EmbeddingModel, logger)
			logger.Debug("embedding cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	a.Pipeline = core.NewPipeline(
		core.NewRewriter(client, cfg.HistoryWindow, logger),
		core.NewRetriever(embedder, a.Store, cfg.TopK, logger),
		core.NewExplainer(client, logger),
		logger,
	)
	a.Sessions = session.NewRegistry(a.Pipeline, cfg.SessionTTL, logger)
	return a, nil
}

// OpenStore wires only the vector store, for commands that make no model calls
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		closers: []func() error{store.Close},
	}, nil
}

// Ingester builds an ingester writing into the app's store
func (a *App) Ingester(opts ingest.Options) *ingest.Ingester {
	if opts.WorkDir == "" {
		opts.WorkDir = a.Config.IngestDir()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = a.Config.BatchSize
	}
	return ingest.New(a.LLM, a.Store, opts, a.Logger)
}

// Clusters builds a clustering analyzer over the app's store. Insights are
// only available when the app was built with New.
func (a *App) Clusters() *cluster.Analyzer {
	var chat cluster.ChatModel
	if a.LLM != nil {
		chat = a.LLM
	}
	return cluster.NewAnalyzer(a.Store, chat, a.Logger)
}

// Close releases everything in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
