// ABOUTME: Tests for the MCP tool handlers
// ABOUTME: Drives the handlers with fake pipeline pieces and checks JSON payloads and tool errors
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BASF-LSU-Collaborations/ragui/internal/cluster"
	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap/zaptest"
)

var heat = models.ScoredMovie{
	Movie:      models.MovieRecord{ID: "movie_0", Title: "Heat", Type: models.TypeMovie, ReleaseYear: 1995, Rating: "R", Description: "A heist crew"},
	Similarity: 0.91,
}

type fakeAnswerer struct {
	reqs []core.Request
	err  error
}

func (f *fakeAnswerer) Answer(_ context.Context, history *models.ConversationState, req core.Request) (models.Answer, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return models.Answer{}, f.err
	}
	rewritten := req.Query
	if history.Len() > 0 {
		rewritten = req.Query + " (follow-up)"
	}
	return models.Answer{
		RewrittenQuery: rewritten,
		Results:        models.RetrievalResult{Items: []models.ScoredMovie{heat}},
		Explanation:    "Heat is a tense heist film.",
	}, nil
}

type fakeSearcher struct {
	filter models.Filter
	topK   int
	err    error
}

func (f *fakeSearcher) Retrieve(_ context.Context, _ string, filter models.Filter, topK int) (models.RetrievalResult, error) {
	f.filter, f.topK = filter, topK
	if f.err != nil {
		return models.RetrievalResult{}, f.err
	}
	return models.RetrievalResult{Items: []models.ScoredMovie{heat}}, nil
}

type fakeStats struct{ err error }

func (f fakeStats) Stats(context.Context) (models.StoreStats, error) {
	if f.err != nil {
		return models.StoreStats{}, f.err
	}
	return models.StoreStats{Backend: "sqlite", Location: "/tmp/c", Count: 42, Dimension: 1536}, nil
}

type fakeClusterer struct {
	opts cluster.Options
	err  error
}

func (f *fakeClusterer) Analyze(_ context.Context, opts cluster.Options) (*cluster.Result, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &cluster.Result{K: 1, Titles: 1, Clusters: []cluster.Cluster{{
		Size:            1,
		Insight:         cluster.Insight{Label: "Heist Thrillers", Themes: []string{"crime"}, Keywords: []string{"vault"}},
		Representatives: []models.MovieRecord{heat.Movie},
	}}}, nil
}

func newHandlers(t *testing.T, ans *fakeAnswerer, s *fakeSearcher, st fakeStats) *Handlers {
	t.Helper()
	return newHandlersWithClusterer(t, ans, s, st, &fakeClusterer{})
}

func newHandlersWithClusterer(t *testing.T, ans *fakeAnswerer, s *fakeSearcher, st fakeStats, c *fakeClusterer) *Handlers {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewHandlers(session.NewRegistry(ans, 0, logger), s, st, c, logger)
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestRecommendMovies_ContinuesSession(t *testing.T) {
	ans := &fakeAnswerer{}
	h := newHandlers(t, ans, &fakeSearcher{}, fakeStats{})
	ctx := context.Background()

	res, err := h.RecommendMovies(ctx, call(map[string]interface{}{"query": "heist movies", "type": "Movie"}))
	if err != nil || res.IsError {
		t.Fatalf("RecommendMovies() = %v, %v", resultText(t, res), err)
	}
	var first recommendResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &first); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if first.SessionID == "" {
		t.Fatal("session_id is empty, want a minted id")
	}
	if len(first.Results) != 1 || first.Results[0].Movie.Title != "Heat" {
		t.Errorf("results = %+v, want Heat", first.Results)
	}
	if ans.reqs[0].Purpose != core.PurposeRecommendation {
		t.Errorf("purpose = %q, want recommendation", ans.reqs[0].Purpose)
	}
	if len(ans.reqs[0].Filter) != 1 {
		t.Errorf("filter = %v, want one type condition", ans.reqs[0].Filter)
	}

	res, _ = h.RecommendMovies(ctx, call(map[string]interface{}{"query": "older ones?", "session_id": first.SessionID}))
	var second recommendResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &second); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session_id = %q, want %q", second.SessionID, first.SessionID)
	}
	if !strings.HasSuffix(second.RewrittenQuery, "(follow-up)") {
		t.Errorf("rewritten_query = %q, want it to see prior turns", second.RewrittenQuery)
	}
}

func TestRecommendMovies_RequiresQuery(t *testing.T) {
	h := newHandlers(t, &fakeAnswerer{}, &fakeSearcher{}, fakeStats{})
	res, err := h.RecommendMovies(context.Background(), call(map[string]interface{}{}))
	if err != nil {
		t.Fatalf("RecommendMovies() error = %v", err)
	}
	if !res.IsError {
		t.Error("IsError = false for a missing query")
	}
}

func TestRecommendMovies_ErrorCarriesKind(t *testing.T) {
	ans := &fakeAnswerer{err: models.NewOpError("explain", models.ErrGeneration, errors.New("503"))}
	h := newHandlers(t, ans, &fakeSearcher{}, fakeStats{})
	res, _ := h.RecommendMovies(context.Background(), call(map[string]interface{}{"query": "anything"}))
	if !res.IsError {
		t.Fatal("IsError = false, want tool error")
	}
	if text := resultText(t, res); !strings.HasPrefix(text, "generation_error") {
		t.Errorf("error text = %q, want generation_error prefix", text)
	}
}

func TestSearchMovies_PassesFiltersAndTopK(t *testing.T) {
	s := &fakeSearcher{}
	h := newHandlers(t, &fakeAnswerer{}, s, fakeStats{})
	res, err := h.SearchMovies(context.Background(), call(map[string]interface{}{
		"query":    "space",
		"rating":   "PG-13",
		"year_min": float64(1990),
		"year_max": float64(1999),
		"top_k":    float64(3),
	}))
	if err != nil || res.IsError {
		t.Fatalf("SearchMovies() = %v, %v", resultText(t, res), err)
	}
	if s.topK != 3 {
		t.Errorf("topK = %d, want 3", s.topK)
	}
	if len(s.filter) != 3 {
		t.Errorf("filter = %v, want rating and two year bounds", s.filter)
	}
	if !strings.Contains(resultText(t, res), `"count":1`) {
		t.Errorf("payload = %s, want count 1", resultText(t, res))
	}
}

func TestSearchMovies_AfterIsStrictYearBound(t *testing.T) {
	s := &fakeSearcher{}
	h := newHandlers(t, &fakeAnswerer{}, s, fakeStats{})
	res, err := h.SearchMovies(context.Background(), call(map[string]interface{}{
		"query": "space",
		"after": float64(2015),
	}))
	if err != nil || res.IsError {
		t.Fatalf("SearchMovies() = %v, %v", resultText(t, res), err)
	}
	want := models.YearAfter(2015)
	if len(s.filter) != 1 || s.filter[0] != want {
		t.Errorf("filter = %v, want [%v]", s.filter, want)
	}
}

func TestRegisterTools_SchemaListsAfter(t *testing.T) {
	server := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(false))
	RegisterTools(server, newHandlers(t, &fakeAnswerer{}, &fakeSearcher{}, fakeStats{}))

	resp := server.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"after":{`) {
		t.Errorf("tools/list does not describe the after filter: %s", data)
	}
}

func TestSearchMovies_StoreUnavailable(t *testing.T) {
	s := &fakeSearcher{err: models.NewOpError("query", models.ErrStoreUnavailable, errors.New("closed"))}
	h := newHandlers(t, &fakeAnswerer{}, s, fakeStats{})
	res, _ := h.SearchMovies(context.Background(), call(map[string]interface{}{"query": "space"}))
	if !res.IsError || !strings.HasPrefix(resultText(t, res), "store_unavailable") {
		t.Errorf("result = %q, want store_unavailable tool error", resultText(t, res))
	}
}

func TestCollectionStats(t *testing.T) {
	h := newHandlers(t, &fakeAnswerer{}, &fakeSearcher{}, fakeStats{})
	res, err := h.CollectionStats(context.Background(), call(nil))
	if err != nil || res.IsError {
		t.Fatalf("CollectionStats() = %v, %v", resultText(t, res), err)
	}
	var st models.StoreStats
	if err := json.Unmarshal([]byte(resultText(t, res)), &st); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if st.Count != 42 || st.Dimension != 1536 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMovieClusters_DefaultsAndPayload(t *testing.T) {
	c := &fakeClusterer{}
	h := newHandlersWithClusterer(t, &fakeAnswerer{}, &fakeSearcher{}, fakeStats{}, c)
	res, err := h.MovieClusters(context.Background(), call(map[string]interface{}{"k": float64(4)}))
	if err != nil || res.IsError {
		t.Fatalf("MovieClusters() = %v, %v", resultText(t, res), err)
	}
	if c.opts.K != 4 || c.opts.Representatives != cluster.DefaultRepresentatives || !c.opts.Insights {
		t.Errorf("options = %+v, want k 4 with default representatives and insights", c.opts)
	}
	text := resultText(t, res)
	for _, want := range []string{`"cluster_label":"Heist Thrillers"`, `"movie_count":1`, `"title":"Heat"`} {
		if !strings.Contains(text, want) {
			t.Errorf("payload missing %s: %s", want, text)
		}
	}
}

func TestMovieClusters_ErrorCarriesKind(t *testing.T) {
	c := &fakeClusterer{err: models.NewOpError("cluster", models.ErrInvalidInput, errors.New("k must be between 2 and 20"))}
	h := newHandlersWithClusterer(t, &fakeAnswerer{}, &fakeSearcher{}, fakeStats{}, c)
	res, _ := h.MovieClusters(context.Background(), call(map[string]interface{}{"k": float64(50), "insights": false}))
	if !res.IsError || !strings.HasPrefix(resultText(t, res), "invalid_input") {
		t.Errorf("result = %q, want invalid_input tool error", resultText(t, res))
	}
	if c.opts.Insights {
		t.Error("insights = true, want the argument honored")
	}
}

func TestRegisterTools(t *testing.T) {
	server := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(false))
	RegisterTools(server, newHandlers(t, &fakeAnswerer{}, &fakeSearcher{}, fakeStats{}))

	resp := server.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, name := range []string{ToolRecommend, ToolSearch, ToolStats, ToolClusters} {
		if !strings.Contains(string(data), `"name":"`+name+`"`) {
			t.Errorf("tool %q not listed in %s", name, data)
		}
	}
}
