// ABOUTME: Runs the MCP server over stdio until the client disconnects or a signal arrives
// ABOUTME: Shared by `ragui mcp` and the standalone server binary
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerName is reported to MCP clients
const ServerName = "ragui movie recommender"

// NewServer builds an MCP server with every tool registered
func NewServer(a *app.App, version string) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(
		ServerName,
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	RegisterTools(server, NewHandlers(a.Sessions, a.Pipeline.Retriever(), a.Store, a.Clusters(), a.Logger))
	return server
}

// Serve runs the stdio transport
func Serve(ctx context.Context, a *app.App, version string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.Sessions.Run(ctx, 0)

	server := NewServer(a, version)
	a.Logger.Info("MCP server starting on stdio", zap.String("version", version))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
