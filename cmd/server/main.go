// ABOUTME: Main entry point for the ragui MCP server with stdio transport
// ABOUTME: Wires the recommendation pipeline from config and serves the movie tools
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/config"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/mcp"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (for API keys)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return mcp.Serve(ctx, a, version)
}
