// ABOUTME: Pipeline sequences rewrite, retrieve, and explain for one user query
// ABOUTME: Rewrite failures degrade to the raw query; later failures abort with a typed error
package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"go.uber.org/zap"
)

// Request is one question from the UI
type Request struct {
	Query   string
	Filter  models.Filter
	TopK    int
	Purpose Purpose
}

// Pipeline is the retrieval-augmented recommendation flow
type Pipeline struct {
	rewriter  *Rewriter
	retriever *Retriever
	explainer *Explainer
	logger    *zap.Logger
}

// NewPipeline wires the three stages together
func NewPipeline(rewriter *Rewriter, retriever *Retriever, explainer *Explainer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		rewriter:  rewriter,
		retriever: retriever,
		explainer: explainer,
		logger:    logging.OrNop(logger).Named("pipeline"),
	}
}

// Retriever exposes the search stage for retrieval-only callers
func (p *Pipeline) Retriever() *Retriever {
	return p.retriever
}

// Answer runs the full flow. history is read but never modified; recording
// the exchange is the caller's job.
func (p *Pipeline) Answer(ctx context.Context, history *models.ConversationState, req Request) (models.Answer, error) {
	if strings.TrimSpace(req.Query) == "" {
		return models.Answer{}, models.NewOpError("answer", models.ErrInvalidInput, errors.New("query is empty"))
	}
	if req.Purpose == "" {
		req.Purpose = PurposeRecommendation
	}
	if _, err := ParsePurpose(string(req.Purpose)); err != nil {
		return models.Answer{}, err
	}
	filter, err := req.Filter.Validate()
	if err != nil {
		return models.Answer{}, err
	}

	start := time.Now()
	rewritten := p.rewriter.Rewrite(ctx, history, req.Query)

	results, err := p.retriever.Retrieve(ctx, rewritten, filter, req.TopK)
	if err != nil {
		p.logger.Warn("retrieval failed", zap.String("kind", models.Kind(err)), zap.Error(err))
		return models.Answer{}, err
	}

	explanation, err := p.explainer.Explain(ctx, req.Query, results, req.Purpose)
	if err != nil {
		p.logger.Warn("explanation failed", zap.String("kind", models.Kind(err)), zap.Error(err))
		return models.Answer{}, err
	}

	p.logger.Info("answered query",
		zap.String("query", req.Query),
		zap.String("rewritten", rewritten),
		zap.Stringer("filter", filter),
		zap.Int("results", results.Len()),
		zap.Duration("elapsed", time.Since(start)))

	return models.Answer{
		RewrittenQuery: rewritten,
		Results:        results,
		Explanation:    explanation,
	}, nil
}
