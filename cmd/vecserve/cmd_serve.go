package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/DreamCats/vecserve/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve embed, push and search over HTTP.

Routes:
  GET  /         health check
  POST /embed    {"text"}                          -> {"vector": [...]}
  POST /push     {"text", "collection"?}           -> {"status", "collection", "id"}
  POST /search   {"text", "collection"?, "limit"?} -> ["text", ...]

When a token is configured every POST route requires "Authorization: Bearer <token>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		addr := serveAddr
		if addr == "" {
			addr = cfg.Addr()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := httpapi.New(svc, logger)
		if err := server.ListenAndServe(ctx, addr, cfg.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default host:port from config)")
}
