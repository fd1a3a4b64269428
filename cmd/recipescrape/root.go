package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/recipescrape/recipescrape/pkg/version"
)

// rootFlags holds the persistent flags shared by every command
type rootFlags struct {
	configPath string
	logLevel   string
}

var rootOpts rootFlags

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recipescrape",
	Short: "Recipe scraper toolkit",
	Long: `recipescrape runs recipe scrapers that collect recipe links from cooking
sites and build the food list of a Mealie instance.

Fetched data is cached on disk between runs; results are written to the
output directory or an S3 bucket.`,
	Version:       version.FullString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.configPath, "config", "c", "", "Path to configuration file (default "+defaultConfigName+")")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "", "Log level override (TRACE, DEBUG, INFO, WARN, ERROR)")
}
