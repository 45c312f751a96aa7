package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed TEXT",
	Short: "Print the embedding vector of a text as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		vector, err := svc.Embed(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{"vector": vector})
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}
