// ABOUTME: MCP tool definitions and registration for the movie recommender
// ABOUTME: Declares JSON schemas for the recommend, search, stats, and clustering tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Tool names
const (
	ToolRecommend = "recommend_movies"
	ToolSearch    = "search_movies"
	ToolStats     = "collection_stats"
	ToolClusters  = "movie_clusters"
)

// filterProperties are the metadata filters shared by the query tools
func filterProperties() map[string]interface{} {
	return map[string]interface{}{
		"rating": map[string]interface{}{
			"type":        "string",
			"description": "Exact rating classification, e.g. PG-13 or TV-MA",
		},
		"type": map[string]interface{}{
			"type":        "string",
			"description": "Content type: Movie or TV Show",
		},
		"year_min": map[string]interface{}{
			"type":        "number",
			"description": "Earliest release year (inclusive)",
		},
		"year_max": map[string]interface{}{
			"type":        "number",
			"description": "Latest release year (inclusive)",
		},
		"after": map[string]interface{}{
			"type":        "number",
			"description": "Only titles released strictly after this year",
		},
		"top_k": map[string]interface{}{
			"type":        "number",
			"description": "Number of titles to retrieve (default: 5)",
			"default":     5,
		},
	}
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, h *Handlers) {
	recommendProps := filterProperties()
	recommendProps["query"] = map[string]interface{}{
		"type":        "string",
		"description": "What the user is looking for, in their own words",
	}
	recommendProps["session_id"] = map[string]interface{}{
		"type":        "string",
		"description": "Conversation to continue; omit to start a new one",
	}

	// 1. recommend_movies - full conversational pipeline
	server.AddTool(mcp.Tool{
		Name:        ToolRecommend,
		Description: "Recommend movies and shows for a request. Follow-up questions in the same session are rewritten using the conversation so far.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: recommendProps,
			Required:   []string{"query"},
		},
	}, h.RecommendMovies)

	searchProps := filterProperties()
	searchProps["query"] = map[string]interface{}{
		"type":        "string",
		"description": "Text to match against title descriptions",
	}

	// 2. search_movies - semantic search only, no generation
	server.AddTool(mcp.Tool{
		Name:        ToolSearch,
		Description: "Semantic search over title descriptions with optional metadata filters. Returns ranked titles without an explanation.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: searchProps,
			Required:   []string{"query"},
		},
	}, h.SearchMovies)

	// 3. collection_stats - describe the vector collection
	server.AddTool(mcp.Tool{
		Name:        ToolStats,
		Description: "Describe the movie collection: backend, location, number of titles, and vector dimension.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.CollectionStats)

	// 4. movie_clusters - group the collection into themed clusters
	server.AddTool(mcp.Tool{
		Name:        ToolClusters,
		Description: "Group the collection into clusters of similar titles. Each cluster has a label, themes, keywords, and its most central titles.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"k": map[string]interface{}{
					"type":        "number",
					"description": "Number of clusters, 2 to 20 (default: 8)",
					"default":     8,
				},
				"sample": map[string]interface{}{
					"type":        "number",
					"description": "Cluster only the first N stored titles; omit for the whole collection",
				},
				"representatives": map[string]interface{}{
					"type":        "number",
					"description": "Central titles listed per cluster (default: 3)",
					"default":     3,
				},
				"insights": map[string]interface{}{
					"type":        "boolean",
					"description": "Ask the model to label each cluster (default: true)",
					"default":     true,
				},
			},
		},
	}, h.MovieClusters)
}
