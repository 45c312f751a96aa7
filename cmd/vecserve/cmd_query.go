package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	queryCollection string
	queryLimit      int
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Find the stored texts most similar to TEXT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		texts, err := svc.Query(cmd.Context(), args[0], queryCollection, queryLimit)
		if err != nil {
			return err
		}
		if queryJSON {
			return json.NewEncoder(os.Stdout).Encode(texts)
		}
		if len(texts) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for i, text := range texts {
			fmt.Printf("%d. %s\n", i+1, text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryCollection, "collection", "c", "", "collection to search (default from config)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}
