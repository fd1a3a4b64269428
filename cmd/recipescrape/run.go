package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/types"
)

// runCmd runs every registered scraper
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all scrapers",
	Long: `Run every registered scraper in name order.

A failing scraper does not stop the others. The cache is flushed once after
the last scraper finishes; the command fails if the flush fails or any
scraper failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.startMetrics(cmd.Context()); err != nil {
			return err
		}
		runner, err := a.runner(cmd)
		if err != nil {
			return err
		}

		results, flushErr := runner.RunAll(cmd.Context())
		failed := printResults(cmd.OutOrStdout(), results)
		if flushErr != nil {
			return flushErr
		}
		if failed > 0 {
			return errors.Newf(errors.ErrCodeInternalError, "%d of %d scrapers failed", failed, len(results)).
				WithComponent("cli")
		}
		return nil
	},
}

// scrapeCmd runs a single scraper
var scrapeCmd = &cobra.Command{
	Use:   "scrape <name>",
	Short: "Run one scraper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.startMetrics(cmd.Context()); err != nil {
			return err
		}
		runner, err := a.runner(cmd)
		if err != nil {
			return err
		}

		result, err := runner.Run(cmd.Context(), args[0])
		if !errors.HasCode(err, errors.ErrCodeScraperNotFound) {
			printResults(cmd.OutOrStdout(), []types.ScrapeResult{result})
		}
		return err
	},
}

// listCmd lists the registered scrapers
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scrapers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range newRegistry().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func printResults(w io.Writer, results []types.ScrapeResult) int {
	failed := 0
	for _, r := range results {
		status := "ok"
		if !r.Succeeded() {
			status = "failed: " + r.Err.Error()
			failed++
		}
		fmt.Fprintf(w, "%-15s items=%-5d outputs=%-3d %8s  %s\n",
			r.Scraper, r.Items, len(r.Outputs), r.Duration.Round(time.Millisecond), status)
	}
	return failed
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(listCmd)
}
