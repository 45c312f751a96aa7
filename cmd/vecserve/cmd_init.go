package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecserve/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				return err
			}
		}
		created, err := config.WriteDefaultTemplate(path)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Wrote %s\n", path)
		} else {
			fmt.Printf("Config already exists at %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
