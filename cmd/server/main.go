// ABOUTME: Standalone MCP server binary for agent hosts that expect a bare command
// ABOUTME: Equivalent to `bookbuddy mcp`, with ingestion workers in-process
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harper/bookbuddy/cmd/bookbuddy/commands"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	// stdout carries the protocol, so errors go to stderr only
	if err := commands.ServeMCP(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "bookbuddy-server: %v\n", err)
		os.Exit(1)
	}
}
