package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recipescrape/recipescrape/pkg/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display detailed version information including build date, git commit, and Go version.`,
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Info()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "recipescrape version: %s\n", info["version"])
		fmt.Fprintf(w, "  build date: %s\n", info["buildDate"])
		fmt.Fprintf(w, "  git commit: %s\n", info["gitCommit"])
		fmt.Fprintf(w, "  go version: %s\n", info["goVersion"])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
