package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/repowatch/config"
	"github.com/jpalmerr/repowatch/internal/journal"
)

// historyCmd shows recently delivered events from the journal.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently delivered events",
	Long: `Show recently delivered events recorded in the delivery journal.

The journal is populated by a running watcher when a journal path is
configured (the "journal" key in the config file, or WithJournal in the
SDK). History survives restarts; without a journal this command has
nothing to show.

The journal path is taken from the config file, or directly from the
--journal flag if set.

Example:
  repowatch history -c config.yaml
  repowatch history -c config.yaml --source golang/go --limit 20
  repowatch history --journal repowatch.db`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("config", "c", "", "path to config file")
	historyCmd.Flags().StringP("journal", "j", "", "path to the journal database (overrides config)")
	historyCmd.Flags().StringP("source", "s", "", "only show events from this owner/name feed")
	historyCmd.Flags().IntP("limit", "n", 50, "maximum number of events to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("journal")
	if path == "" {
		configFile, _ := cmd.Flags().GetString("config")
		if configFile == "" {
			return fmt.Errorf("either --config or --journal is required")
		}
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Journal == "" {
			return fmt.Errorf("config has no journal configured; nothing to show")
		}
		path = cfg.Journal
	}

	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")

	jnl, err := journal.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = jnl.Close() }()

	entries, err := jnl.Recent(cmd.Context(), source, limit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No events recorded yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Delivered", "Feed", "Event", "Type", "Actor"})

	for _, e := range entries {
		t.AppendRow(table.Row{
			e.DeliveredAt.Local().Format("2006-01-02 15:04:05"),
			e.Source,
			e.EventID,
			e.Type,
			e.Actor,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d events", len(entries))})
	t.Render()

	return nil
}
