package main

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - declarative policy evaluation engine",
	Long: `Sentinel decides whether an action is allowed in its operating context by
evaluating it against prioritized, declarative rules.

Rules are YAML or JSON documents with a trigger, an optional condition and an
action. The highest-priority rule whose trigger and condition match decides;
when none matches the action is allowed.

Rules can be loaded from:
  - a directory tree (discovered upward as .sentinel/rules)
  - a SQLite or Redis document store
  - a git repository`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults and SENTINEL_* environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
