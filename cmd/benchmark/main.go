// ABOUTME: Command-line benchmark runner for RAGAS-style recommender checks
// ABOUTME: Plays scenarios against the configured collection and writes JSON results

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/benchmarks/ragas"
	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/config"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/joho/godotenv"
)

func main() {
	testID := flag.String("test", "", "Run a specific built-in test (1, 2, 3). If empty, runs all tests.")
	scenarioPath := flag.String("scenarios", "", "JSON file of extra scenarios to run instead of the built-ins")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	configPath := flag.String("config", "", "Path to a TOML config file")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (continuing anyway): %v", err)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	scenarios, err := selectScenarios(*testID, *scenarioPath)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("========================================")
	fmt.Println("ragui RAGAS Benchmarks")
	fmt.Println("========================================")
	fmt.Println()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer func() { _ = a.Close() }()

	runner := ragas.NewBenchmarkRunner(a.Pipeline, a.Store, logger)
	results := runner.RunAll(ctx, scenarios)

	fmt.Println("\n========================================")
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println("========================================")

	for _, result := range results {
		fmt.Printf("\n%s: %s\n", result.TestID, result.TestName)
		if result.Status == "ERROR" {
			fmt.Printf("  Error: %v\n", result.Details["error"])
			continue
		}
		fmt.Printf("  Faithfulness: %.2f\n", result.FaithfulnessScore)
		fmt.Printf("  Context Recall: %.2f\n", result.ContextRecallScore)
		fmt.Printf("  Filter Precision: %.2f\n", result.FilterPrecision)
		fmt.Printf("  Overall: %.2f\n", result.OverallScore)
		fmt.Printf("  Status: %s\n", result.Status)
	}

	summary := ragas.Summarize(results)
	fmt.Println("\n========================================")
	fmt.Printf("Total Tests: %d\n", summary.Total)
	fmt.Printf("Passed: %d\n", summary.Passed)
	fmt.Printf("Failed: %d\n", summary.Failed)
	fmt.Println("========================================")

	if err := runner.ExportResults(results, *outputPath); err != nil {
		log.Fatalf("Failed to export results: %v", err)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func selectScenarios(testID, path string) ([]ragas.TestScenario, error) {
	all := ragas.BuiltinScenarios()
	if path != "" {
		loaded, err := ragas.LoadScenarios(path)
		if err != nil {
			return nil, err
		}
		all = loaded
	}
	if testID == "" {
		return all, nil
	}
	ids := make([]string, 0, len(all))
	for _, s := range all {
		if s.ID == testID {
			return []ragas.TestScenario{s}, nil
		}
		ids = append(ids, s.ID)
	}
	return nil, fmt.Errorf("unknown test ID: %s (valid options: %s)", testID, strings.Join(ids, ", "))
}
