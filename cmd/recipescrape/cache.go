package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recipescrape/recipescrape/pkg/errors"
)

// cacheFlags holds the flags for the cache subcommands
type cacheFlags struct {
	namespace string
}

var cacheOpts cacheFlags

// cacheCmd groups the cache inspection commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the scraper cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print live cache entries as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		names := a.store.Namespaces()
		if cacheOpts.namespace != "" {
			names = []string{cacheOpts.namespace}
		}

		view := make(map[string]map[string]json.RawMessage, len(names))
		for _, name := range names {
			ns, err := a.store.Namespace(name)
			if err != nil {
				return err
			}
			view[name] = ns.GetAll()
		}

		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry of one namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cacheOpts.namespace == "" {
			return errors.NewError(errors.ErrCodeInvalidNamespace, "--namespace is required").
				WithComponent("cli")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ns, err := a.store.Namespace(cacheOpts.namespace)
		if err != nil {
			return err
		}
		count := len(ns.Keys())
		ns.Clear()
		if err := a.store.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries from %s\n", count, cacheOpts.namespace)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		w := cmd.OutOrStdout()
		stats := a.store.Stats()
		fmt.Fprintf(w, "path:       %s\n", a.store.Config().Path)
		fmt.Fprintf(w, "entries:    %d\n", stats.Entries)
		fmt.Fprintf(w, "namespaces: %d\n", stats.Namespaces)
		for _, name := range a.store.Namespaces() {
			ns := a.store.MustNamespace(name)
			fmt.Fprintf(w, "  %-15s %d\n", name, len(ns.Keys()))
		}
		return nil
	},
}

func init() {
	cacheShowCmd.Flags().StringVarP(&cacheOpts.namespace, "namespace", "n", "", "Only show this namespace")
	cacheClearCmd.Flags().StringVarP(&cacheOpts.namespace, "namespace", "n", "", "Namespace to clear (required)")

	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
