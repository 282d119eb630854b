package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Chat server with conversation storage, model agents and the commerce
// command flow.
//
// Examples:
//
//	go run ./cmd/server serve
//	go run ./cmd/server prune --older-than 30 --keep 500
//	go run ./cmd/server stats
func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Chat server with MCP-backed commerce",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("db", "", "SQLite database path (overrides DB_PATH)")

	root.AddCommand(newServeCommand(), newPruneCommand(), newStatsCommand())

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
