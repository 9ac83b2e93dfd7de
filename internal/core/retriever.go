// ABOUTME: Retriever embeds a query and runs a filtered vector search
// ABOUTME: Returns candidates ranked by similarity, truncated to top_k
package core

import (
	"context"
	"errors"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/util"
	"go.uber.org/zap"
)

// DefaultTopK is used when a caller asks for zero or fewer results
const DefaultTopK = 5

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Searcher runs a filtered nearest-neighbour query
type Searcher interface {
	Query(ctx context.Context, vector []float64, filter models.Filter, topK int) (models.RetrievalResult, error)
}

// Retriever finds the movies closest to a query
type Retriever struct {
	embedder Embedder
	store    Searcher
	topK     int
	logger   *zap.Logger
}

// NewRetriever creates a retriever; defaultTopK applies when a call passes topK <= 0
func NewRetriever(embedder Embedder, store Searcher, defaultTopK int, logger *zap.Logger) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     defaultTopK,
		logger:   logging.OrNop(logger).Named("retriever"),
	}
}

// Retrieve returns at most topK movies matching filter, best first. An empty
// result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter models.Filter, topK int) (models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return models.RetrievalResult{}, models.NewOpError("retrieve", models.ErrInvalidInput, errors.New("query is empty"))
	}
	filter, err := filter.Validate()
	if err != nil {
		return models.RetrievalResult{}, err
	}
	if topK <= 0 {
		topK = r.topK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return models.RetrievalResult{}, typed("retrieve.embed", models.ErrEmbedding, err)
	}

	res, err := r.store.Query(ctx, vector, filter, topK)
	if err != nil {
		return models.RetrievalResult{}, typed("retrieve.query", models.ErrStoreUnavailable, err)
	}

	res.Items = util.RankTopK(res.Items, func(it models.ScoredMovie) float64 { return it.Similarity }, topK)

	r.logger.Debug("retrieved movies",
		zap.String("query", query),
		zap.Stringer("filter", filter),
		zap.Int("results", res.Len()))
	return res, nil
}

// typed keeps errors that already carry a kind and wraps the rest with kind
func typed(op string, kind, err error) error {
	if models.HasKind(err) {
		return err
	}
	return models.NewOpError(op, kind, err)
}
