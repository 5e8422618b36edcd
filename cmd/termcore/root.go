package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "termcore",
	Short:        "Versioned terminology dictionary core",
	Long:         `termcore manages versioned sources, concepts, mappings and curated collections, with reference expressions to pin collection contents to immutable versions.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(exportCmd)
}
