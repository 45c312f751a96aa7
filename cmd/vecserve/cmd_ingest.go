package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecserve/internal/ingest"
)

var (
	ingestCollection string
	ingestGlob       string
	ingestExclude    []string
	ingestMaxBytes   int64
	ingestProgress   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [TEXT]",
	Short: "Store a text, or every file matching a glob, in a collection",
	Long: `Store a text as a new point. With --glob every matching file is stored as
one point, one file at a time.

Examples:
  vecserve ingest "the sky is blue" -c demo
  vecserve ingest --glob "docs/**/*.md" --exclude "**/drafts/**" -c docs`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (ingestGlob != "") {
			return fmt.Errorf("pass either TEXT or --glob")
		}
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		out := json.NewEncoder(os.Stdout)
		if len(args) == 1 {
			res, err := svc.Ingest(cmd.Context(), args[0], ingestCollection)
			if err != nil {
				return err
			}
			return out.Encode(res)
		}

		files, err := ingest.Match(ingestGlob, ingestExclude)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files match %q", ingestGlob)
		}
		summary, err := ingest.Files(cmd.Context(), svc, files, ingest.Options{
			Collection:   ingestCollection,
			MaxFileBytes: ingestMaxBytes,
			Progress:     ingest.NewProgress(ingestProgress),
			Logger:       logger,
		})
		logger.Info("ingest finished", "files", len(files), "ingested", len(summary.Ingested), "skipped", len(summary.Skipped))
		if err != nil {
			return err
		}
		return out.Encode(summary.Ingested)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "target collection (default from config)")
	ingestCmd.Flags().StringVar(&ingestGlob, "glob", "", "doublestar pattern of files to ingest")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "doublestar patterns to skip")
	ingestCmd.Flags().Int64Var(&ingestMaxBytes, "max-bytes", ingest.DefaultMaxFileBytes, "skip files larger than this")
	ingestCmd.Flags().BoolVar(&ingestProgress, "progress", ingest.DefaultProgressEnabled(), "show progress bar")
}
