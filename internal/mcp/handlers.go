// ABOUTME: MCP tool handler implementations for the movie recommender
// ABOUTME: Failures are returned as tool errors tagged with the pipeline error kind
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BASF-LSU-Collaborations/ragui/internal/cluster"
	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// Sessions hands out conversation sessions
type Sessions interface {
	GetOrCreate(id string) (*session.Session, error)
}

// Searcher runs retrieval without rewriting or generation
type Searcher interface {
	Retrieve(ctx context.Context, query string, filter models.Filter, topK int) (models.RetrievalResult, error)
}

// StatsSource describes the collection
type StatsSource interface {
	Stats(ctx context.Context) (models.StoreStats, error)
}

// Clusterer groups the collection into themed clusters
type Clusterer interface {
	Analyze(ctx context.Context, opts cluster.Options) (*cluster.Result, error)
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	sessions  Sessions
	searcher  Searcher
	stats     StatsSource
	clusterer Clusterer
	logger    *zap.Logger
}

// NewHandlers wires the tool handlers to the pipeline
func NewHandlers(sessions Sessions, searcher Searcher, stats StatsSource, clusterer Clusterer, logger *zap.Logger) *Handlers {
	return &Handlers{
		sessions:  sessions,
		searcher:  searcher,
		stats:     stats,
		clusterer: clusterer,
		logger:    logging.OrNop(logger).Named("mcp"),
	}
}

type recommendResponse struct {
	SessionID      string               `json:"session_id"`
	RewrittenQuery string               `json:"rewritten_query"`
	Results        []models.ScoredMovie `json:"results"`
	Explanation    string               `json:"explanation"`
}

// RecommendMovies handles the recommend_movies tool
func (h *Handlers) RecommendMovies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	sess, err := h.sessions.GetOrCreate(request.GetString("session_id", ""))
	if err != nil {
		return h.toolError(ToolRecommend, err), nil
	}

	ans, err := sess.Ask(ctx, core.Request{
		Query:   query,
		Filter:  criteria(request).Filter(),
		TopK:    request.GetInt("top_k", 0),
		Purpose: core.PurposeRecommendation,
	})
	if err != nil {
		return h.toolError(ToolRecommend, err), nil
	}

	return jsonResult(recommendResponse{
		SessionID:      sess.ID,
		RewrittenQuery: ans.RewrittenQuery,
		Results:        nonNil(ans.Results.Items),
		Explanation:    ans.Explanation,
	})
}

// SearchMovies handles the search_movies tool
func (h *Handlers) SearchMovies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	res, err := h.searcher.Retrieve(ctx, query, criteria(request).Filter(), request.GetInt("top_k", 0))
	if err != nil {
		return h.toolError(ToolSearch, err), nil
	}

	return jsonResult(map[string]interface{}{
		"query":   query,
		"count":   res.Len(),
		"results": nonNil(res.Items),
	})
}

// CollectionStats handles the collection_stats tool
func (h *Handlers) CollectionStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.stats.Stats(ctx)
	if err != nil {
		return h.toolError(ToolStats, err), nil
	}
	return jsonResult(st)
}

// MovieClusters handles the movie_clusters tool
func (h *Handlers) MovieClusters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.clusterer.Analyze(ctx, cluster.Options{
		K:               request.GetInt("k", cluster.DefaultK),
		Sample:          request.GetInt("sample", 0),
		Representatives: request.GetInt("representatives", cluster.DefaultRepresentatives),
		Insights:        request.GetBool("insights", true),
	})
	if err != nil {
		return h.toolError(ToolClusters, err), nil
	}
	return jsonResult(res)
}

func criteria(request mcp.CallToolRequest) models.Criteria {
	return models.Criteria{
		Rating:  request.GetString("rating", ""),
		Type:    request.GetString("type", ""),
		YearMin: request.GetInt("year_min", 0),
		YearMax: request.GetInt("year_max", 0),
		After:   request.GetInt("after", 0),
	}
}

func (h *Handlers) toolError(tool string, err error) *mcp.CallToolResult {
	kind := models.Kind(err)
	h.logger.Warn("tool failed", zap.String("tool", tool), zap.String("kind", kind), zap.Error(err))
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func nonNil(items []models.ScoredMovie) []models.ScoredMovie {
	if items == nil {
		return []models.ScoredMovie{}
	}
	return items
}
