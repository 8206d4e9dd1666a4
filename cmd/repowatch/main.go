// Package main is the entry point for the repowatch CLI.
//
// Repowatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	repowatch watch -c config.yaml    # Watch the configured feeds
//	repowatch validate -c config.yaml # Validate configuration
//	repowatch history -c config.yaml  # Show recently delivered events
//	repowatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "repowatch",
	Short: "Watch repository activity feeds",
	Long: `Repowatch is a long-running watcher for repository activity feeds.

It polls each configured repository's public events feed with conditional
requests, paces itself against the service's rate-limit budget, and logs
every genuinely new event as it appears.

Quick start:
  1. Create a config file (repowatch.yaml)
  2. Run: repowatch watch -c repowatch.yaml

Example config:
  token: ${REPOWATCH_TOKEN:-}
  poll_interval: 60s
  resources:
    - repo: golang/go
      filter: types:PushEvent,ReleaseEvent`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this repowatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("repowatch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
