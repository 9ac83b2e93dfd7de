// ABOUTME: Groups the stored collection into themed clusters of similar titles
// ABOUTME: Picks central titles per cluster and asks the chat model to label each group
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/llm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultK               = 8
	MinK                   = 2
	MaxK                   = 20
	DefaultRepresentatives = 3
	DefaultMaxIterations   = 100
	DefaultSeed            = 42
	insightSample          = 10
)

// Catalog reads stored entries in insertion order
type Catalog interface {
	Count(ctx context.Context) (int, error)
	Peek(ctx context.Context, limit int) ([]models.EmbeddingEntry, error)
}

// ChatModel is the completion call used for cluster insights
type ChatModel interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// Options configures one analysis
type Options struct {
	K               int
	Sample          int // 0 clusters the whole collection
	Representatives int
	Insights        bool
	Members         bool // keep every member id in the result
	Seed            uint64
	MaxIterations   int
}

// Insight is the model's description of a cluster
type Insight struct {
	Label       string   `json:"cluster_label"`
	Themes      []string `json:"themes"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// Cluster is one group of similar titles
type Cluster struct {
	ID              int                  `json:"cluster_id"`
	Size            int                  `json:"movie_count"`
	Insight
	Representatives []models.MovieRecord `json:"representatives"`
	MemberIDs       []string             `json:"member_ids,omitempty"`
}

// Result is a complete clustering of the collection
type Result struct {
	K          int       `json:"k"`
	Titles     int       `json:"titles"`
	Iterations int       `json:"iterations"`
	Clusters   []Cluster `json:"clusters"`
}

// Analyzer clusters a catalog
type Analyzer struct {
	catalog Catalog
	chat    ChatModel
	logger  *zap.Logger
}

// NewAnalyzer creates an analyzer. chat may be nil when insights are never requested.
func NewAnalyzer(catalog Catalog, chat ChatModel, logger *zap.Logger) *Analyzer {
	return &Analyzer{catalog: catalog, chat: chat, logger: logging.OrNop(logger).Named("cluster")}
}

// Validate fills defaults and checks ranges
func (o Options) Validate() (Options, error) {
	if o.K == 0 {
		o.K = DefaultK
	}
	if o.K < MinK || o.K > MaxK {
		return o, models.NewOpError("cluster", models.ErrInvalidInput,
			fmt.Errorf("k must be between %d and %d, got %d", MinK, MaxK, o.K))
	}
	if o.Sample < 0 {
		return o, models.NewOpError("cluster", models.ErrInvalidInput, errors.New("sample must not be negative"))
	}
	if o.Representatives < 0 {
		return o, models.NewOpError("cluster", models.ErrInvalidInput, errors.New("representatives must not be negative"))
	}
	if o.Representatives == 0 {
		o.Representatives = DefaultRepresentatives
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o, nil
}

// Analyze reads the collection, partitions it, and describes every cluster.
// Clusters are ordered by descending size; ties keep k-means order.
func (a *Analyzer) Analyze(ctx context.Context, opts Options) (*Result, error) {
	opts, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	if opts.Insights && a.chat == nil {
		return nil, models.NewOpError("cluster", models.ErrInvalidInput, errors.New("insights need a chat model"))
	}

	limit := opts.Sample
	if limit == 0 {
		if limit, err = a.catalog.Count(ctx); err != nil {
			return nil, err
		}
	}
	entries, err := a.catalog.Peek(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.NewOpError("cluster", models.ErrInvalidInput, errors.New("the collection is empty"))
	}

	vectors := make([][]float64, len(entries))
	for i, e := range entries {
		vectors[i] = e.Vector
	}
	part, err := KMeans(vectors, opts.K, opts.Seed, opts.MaxIterations)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("partitioned collection",
		zap.Int("titles", len(entries)),
		zap.Int("k", len(part.Centroids)),
		zap.Int("iterations", part.Iterations))

	members := make([][]int, len(part.Centroids))
	for i, c := range part.Assign {
		members[c] = append(members[c], i)
	}

	res := &Result{K: len(part.Centroids), Titles: len(entries), Iterations: part.Iterations}
	for c, idx := range members {
		if len(idx) == 0 {
			continue
		}
		cl := Cluster{Size: len(idx), MemberIDs: make([]string, len(idx))}
		for i, j := range idx {
			cl.MemberIDs[i] = entries[j].ID
		}
		for _, j := range Representatives(vectors, idx, part.Centroids[c], opts.Representatives) {
			cl.Representatives = append(cl.Representatives, entries[j].Record())
		}
		res.Clusters = append(res.Clusters, cl)
	}
	sort.SliceStable(res.Clusters, func(i, j int) bool { return res.Clusters[i].Size > res.Clusters[j].Size })

	for i := range res.Clusters {
		cl := &res.Clusters[i]
		cl.ID = i
		cl.Insight = fallbackInsight(i, cl.Size)
		if !opts.Insights {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, models.NewOpError("cluster", models.ErrTimeout, err)
		}
		cl.Insight = a.describe(ctx, i, sampleRecords(entries, cl.MemberIDs, insightSample), cl.Size)
	}
	if !opts.Members {
		for i := range res.Clusters {
			res.Clusters[i].MemberIDs = nil
		}
	}
	return res, nil
}

// Representatives returns up to n member indexes ordered by distance to the
// centroid, nearest first. Equal distances keep member order.
func Representatives(vectors [][]float64, memberIdx []int, centroid []float64, n int) []int {
	ranked := make([]int, len(memberIdx))
	copy(ranked, memberIdx)
	sort.SliceStable(ranked, func(i, j int) bool {
		return sqDist(vectors[ranked[i]], centroid) < sqDist(vectors[ranked[j]], centroid)
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func sampleRecords(entries []models.EmbeddingEntry, ids []string, n int) []models.MovieRecord {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.MovieRecord
	for _, e := range entries {
		if len(out) == n {
			break
		}
		if _, ok := want[e.ID]; ok {
			out = append(out, e.Record())
		}
	}
	return out
}

var insightOptions = llm.ChatOptions{Temperature: 0.3, MaxTokens: 400}

// describe asks the model for a label. Any failure yields the fallback insight.
func (a *Analyzer) describe(ctx context.Context, id int, sample []models.MovieRecord, size int) Insight {
	messages := []llm.Message{{Role: llm.RoleUser, Content: BuildInsightPrompt(sample)}}
	out, err := a.chat.Chat(ctx, messages, insightOptions)
	if err != nil {
		a.logger.Warn("cluster insight failed", zap.Int("cluster", id), zap.String("kind", models.Kind(err)), zap.Error(err))
		return fallbackInsight(id, size)
	}
	ins, err := ParseInsight(out)
	if err != nil {
		a.logger.Warn("cluster insight unparseable", zap.Int("cluster", id), zap.Error(err))
		return fallbackInsight(id, size)
	}
	return ins
}

// BuildInsightPrompt renders the request for one cluster's label and themes
func BuildInsightPrompt(sample []models.MovieRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %d movies from the same cluster and identify:\n", len(sample))
	b.WriteString("1. Common themes, genres, or narrative elements\n")
	b.WriteString("2. Distinctive plot patterns or character archetypes\n")
	b.WriteString("3. A short descriptive label (3-5 words) that captures the essence of this cluster\n")
	b.WriteString("4. Three representative tags/keywords\n\n")
	b.WriteString("Here are the movies:\n\n")
	for i, m := range sample {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Title: %s\nDescription: %s", m.Title, m.Description)
	}
	b.WriteString(`

Respond with only a JSON object in this format:
{
  "cluster_label": "Short descriptive label",
  "themes": ["Theme 1", "Theme 2", "Theme 3"],
  "keywords": ["keyword1", "keyword2", "keyword3"],
  "description": "A paragraph describing what makes movies in this cluster similar."
}`)
	return b.String()
}

// ParseInsight decodes a model reply, tolerating a fenced code block
func ParseInsight(reply string) (Insight, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	var ins Insight
	if err := json.Unmarshal([]byte(s), &ins); err != nil {
		return Insight{}, fmt.Errorf("decode insight: %w", err)
	}
	ins.Label = strings.TrimSpace(ins.Label)
	if ins.Label == "" {
		return Insight{}, errors.New("insight has no cluster_label")
	}
	if ins.Themes == nil {
		ins.Themes = []string{}
	}
	if ins.Keywords == nil {
		ins.Keywords = []string{}
	}
	return ins, nil
}

func fallbackInsight(id, size int) Insight {
	return Insight{
		Label:       fmt.Sprintf("Cluster %d", id),
		Themes:      []string{},
		Keywords:    []string{},
		Description: fmt.Sprintf("A group of %d similar movies.", size),
	}
}
