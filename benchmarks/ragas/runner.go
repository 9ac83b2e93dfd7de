// ABOUTME: Benchmark runner: plays each scenario through a fresh session and scores the final turn
// ABOUTME: Exports per-scenario results and a summary as JSON
package ragas

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/session"
	"go.uber.org/zap"
)

// catalogSample bounds how many stored titles faithfulness checks against
const catalogSample = 500

// Catalog lists stored entries
type Catalog interface {
	Peek(ctx context.Context, limit int) ([]models.EmbeddingEntry, error)
}

// BenchmarkRunner executes scenarios against a pipeline
type BenchmarkRunner struct {
	sessions *session.Registry
	catalog  Catalog
	metrics  *MetricsCalculator
	logger   *zap.Logger
	titles   []string
}

// NewBenchmarkRunner creates a runner over answerer and the stored catalog
func NewBenchmarkRunner(answerer session.Answerer, catalog Catalog, logger *zap.Logger) *BenchmarkRunner {
	logger = logging.OrNop(logger).Named("benchmark")
	return &BenchmarkRunner{
		sessions: session.NewRegistry(answerer, 0, logger),
		catalog:  catalog,
		metrics:  NewMetricsCalculator(),
		logger:   logger,
	}
}

// RunTest plays every turn of scenario in a new session and scores the last answer
func (r *BenchmarkRunner) RunTest(ctx context.Context, scenario TestScenario) (TestResult, error) {
	if len(scenario.Turns) == 0 {
		return TestResult{}, fmt.Errorf("scenario %s has no turns", scenario.ID)
	}
	titles, err := r.catalogTitles(ctx)
	if err != nil {
		return TestResult{}, err
	}

	sess := r.sessions.Create()
	defer r.sessions.Delete(sess.ID)

	purpose := scenario.Purpose
	if purpose == "" {
		purpose = core.PurposeRecommendation
	}

	start := time.Now()
	var ans models.Answer
	for i, turn := range scenario.Turns {
		ans, err = sess.Ask(ctx, core.Request{
			Query:   turn,
			Filter:  scenario.Filter(),
			TopK:    scenario.TopK,
			Purpose: purpose,
		})
		if err != nil {
			return TestResult{}, fmt.Errorf("scenario %s turn %d: %w", scenario.ID, i+1, err)
		}
		r.logger.Debug("turn answered",
			zap.String("scenario", scenario.ID),
			zap.Int("turn", i+1),
			zap.String("rewritten_query", ans.RewrittenQuery),
			zap.Strings("titles", ans.Results.Titles()))
	}

	result := r.metrics.EvaluateTest(scenario, ans, titles)
	result.Details["elapsed_ms"] = time.Since(start).Milliseconds()
	r.logger.Info("scenario scored",
		zap.String("scenario", scenario.ID),
		zap.String("status", result.Status),
		zap.Float64("overall", result.OverallScore))
	return result, nil
}

// RunAll runs scenarios in order. A scenario that errors is recorded as an
// ERROR result and the run continues.
func (r *BenchmarkRunner) RunAll(ctx context.Context, scenarios []TestScenario) []TestResult {
	results := make([]TestResult, 0, len(scenarios))
	for _, s := range scenarios {
		res, err := r.RunTest(ctx, s)
		if err != nil {
			r.logger.Error("scenario failed", zap.String("scenario", s.ID), zap.Error(err))
			res = TestResult{
				TestID:   s.ID,
				TestName: s.Name,
				Status:   "ERROR",
				Details: map[string]interface{}{
					"error":      err.Error(),
					"error_kind": models.Kind(err),
				},
			}
		}
		results = append(results, res)
	}
	return results
}

// Summary aggregates a run
type Summary struct {
	Timestamp time.Time    `json:"timestamp"`
	Total     int          `json:"total"`
	Passed    int          `json:"passed"`
	Failed    int          `json:"failed"`
	Results   []TestResult `json:"results"`
}

// Summarize counts passes and failures
func Summarize(results []TestResult) Summary {
	s := Summary{Timestamp: time.Now().UTC(), Total: len(results), Results: results}
	for _, r := range results {
		if r.Status == "PASS" {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// ExportResults writes results and their summary to outputPath as JSON
func (r *BenchmarkRunner) ExportResults(results []TestResult, outputPath string) error {
	jsonData, err := json.MarshalIndent(Summarize(results), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(outputPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	r.logger.Info("results exported", zap.String("path", outputPath))
	return nil
}

func (r *BenchmarkRunner) catalogTitles(ctx context.Context) ([]string, error) {
	if r.titles != nil || r.catalog == nil {
		return r.titles, nil
	}
	entries, err := r.catalog.Peek(ctx, catalogSample)
	if err != nil {
		return nil, fmt.Errorf("failed to sample catalog: %w", err)
	}
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Metadata.Title)
	}
	r.titles = titles
	return titles, nil
}
