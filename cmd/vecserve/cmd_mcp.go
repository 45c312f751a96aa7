package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecserve/cmd/vecserve/internal"
	"github.com/DreamCats/vecserve/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP stdio server",
	Long: `Run an MCP stdio server exposing:
  - vec_embed
  - vec_ingest
  - vec_query

When a token is configured each tool call must pass it in the "token" field.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := mcpserver.New(svc, internal.Version).Run(cmd.Context()); err != nil {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
