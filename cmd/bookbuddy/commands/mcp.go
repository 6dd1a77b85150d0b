// ABOUTME: MCP command starts the Model Context Protocol server on stdio
// ABOUTME: Ingestion workers run in the same process so uploads are processed
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs BookBuddy as an MCP (Model Context Protocol) server so agents such
as Claude can upload books, ask cited questions, and chat via stdio.
Ingestion workers run alongside the server.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by the agent host)
  bookbuddy mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "bookbuddy": {
  #       "command": "bookbuddy",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	return ServeMCP(cmd.Context())
}

// ServeMCP opens the configured services and serves MCP on stdio
func ServeMCP(ctx context.Context) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	return serveMCP(ctx, a, versionInfo.Version)
}

// serveMCP serves tools on stdio with workers in the background until the
// client disconnects or a shutdown signal arrives
func serveMCP(parent context.Context, a *app, version string) error {
	server := mcpserver.NewMCPServer("BookBuddy", version)
	mcp.RegisterTools(server, mcp.Deps{
		Library:  a.library,
		Chat:     a.chat,
		Searcher: a.search,
		UserID:   a.cfg.UserID,
		Persona:  a.persona(""),
	})

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runWorkers(workerCtx, a, a.cfg.Workers)
	}()
	defer func() {
		cancelWorkers()
		wg.Wait()
	}()

	a.log.Info("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
