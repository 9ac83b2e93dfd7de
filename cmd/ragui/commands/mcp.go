// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets MCP clients ask for movie recommendations over stdio
package commands

import (
	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/mcp"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs ragui as an MCP (Model Context Protocol) server, enabling
LLM agents like Claude to recommend and search movies via stdio.
Logs go to stderr; stdout carries the protocol.

Configure in Claude Desktop's config file to enable the movie tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  ragui mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "movies": {
  #       "command": "ragui",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return mcp.Serve(cmd.Context(), a, versionInfo.Version)
}
