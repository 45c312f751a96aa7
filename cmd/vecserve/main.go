package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecserve/cmd/vecserve/internal"
	"github.com/DreamCats/vecserve/internal/config"
	"github.com/DreamCats/vecserve/internal/service"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	closeLog   func()
)

var rootCmd = &cobra.Command{
	Use:   "vecserve",
	Short: "Text embedding and vector search service",
	Long: `vecserve encodes text into 384-dimensional vectors, stores them in named
collections and answers similarity queries.

Example usage:
  vecserve serve                          # HTTP API on :5000
  vecserve ingest "the sky is blue" -c demo
  vecserve query "what colour is the sky" -c demo -n 1
  vecserve mcp                            # MCP stdio server`,
	Version:       internal.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		// stdout carries the MCP protocol; keep stderr quiet there as well
		quiet := cmd.Name() == "mcp"
		logger, closeLog, err = internal.SetupLogging(cmd.Name(), &cfg.Log, quiet)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			closeLog()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is ~/.vecserve/config/vecserve.yaml)")
}

// openService builds the service from the loaded configuration.
func openService() (*service.Service, func() error, error) {
	return service.FromConfig(cfg, logger)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
