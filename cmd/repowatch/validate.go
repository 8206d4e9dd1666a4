package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/repowatch/config"
)

// validateCmd validates a config file without starting the watcher.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a repowatch configuration file without starting the watcher.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  repowatch validate -c config.yaml
  repowatch validate --config /etc/repowatch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// count total feeds (direct + from groups)
	directFeeds := len(cfg.Resources)
	groupFeeds := 0
	for _, g := range cfg.Groups {
		groupFeeds += len(g.Repos)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	if cfg.StatusPort != 0 {
		fmt.Printf("  Status port:   %d\n", cfg.StatusPort)
	}
	if cfg.Journal != "" {
		fmt.Printf("  Journal:       %s\n", cfg.Journal)
	}
	fmt.Printf("  Feeds:         %d direct + %d from groups = %d total\n",
		directFeeds, groupFeeds, directFeeds+groupFeeds)

	return nil
}
