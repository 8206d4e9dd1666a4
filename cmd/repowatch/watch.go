package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/repowatch"
	"github.com/jpalmerr/repowatch/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// watchCmd starts watching the given feeds.
var watchCmd = &cobra.Command{
	Use:   "watch [owner/repo ...]",
	Short: "Watch repository feeds",
	Long: `Watch repository feeds and log new events.

Feeds come from a config file, from positional owner/repo arguments, or
both. Command-line values take precedence over the config file: positional
repos are added to the configured resources, and the --token, --interval,
--status-port and --journal flags override their config counterparts.

The watcher will:
  - Seed each feed silently from its current backlog
  - Poll every feed at its configured interval, paced by the shared
    rate-limit budget
  - Log each new event as JSON on stderr

The watcher runs until interrupted (Ctrl+C) or receives SIGTERM. It exits
with an error only if every feed has failed permanently.

Example:
  repowatch watch golang/go
  repowatch watch -c config.yaml
  repowatch watch golang/tools -c config.yaml --interval 30s --verbose`,
	Args: validateRepoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file")
	watchCmd.Flags().String("token", "", "bearer token for feed requests (overrides config)")
	watchCmd.Flags().Duration("interval", 0, "base poll interval (overrides config)")
	watchCmd.Flags().Int("status-port", 0, "HTTP port for the status API (overrides config)")
	watchCmd.Flags().String("journal", "", "path of the SQLite delivery journal (overrides config)")
	watchCmd.Flags().BoolP("verbose", "v", false, "log at debug level (includes idle polls)")
}

// validateRepoArgs rejects positional arguments that are not "owner/name"
// before anything starts.
func validateRepoArgs(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		if _, err := repowatch.NewResource(arg); err != nil {
			return err
		}
	}
	return nil
}

// watchOverrides carries the command-line values that take precedence over
// the config file. Zero values mean "not given, use the config".
type watchOverrides struct {
	token      string
	interval   time.Duration
	statusPort int
	journal    string
}

// watchOptions merges the loaded config, positional owner/repo arguments,
// and flag overrides into the watcher's option list. A positional repo that
// is already configured is kept once.
func watchOptions(cfg *config.Config, repos []string, ov watchOverrides, logger *slog.Logger) ([]repowatch.Option, error) {
	resources, err := config.BuildResources(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build resources: %w", err)
	}

	seen := make(map[string]bool, len(resources))
	for _, r := range resources {
		seen[r.String()] = true
	}
	for _, repo := range repos {
		r, err := repowatch.NewResource(repo)
		if err != nil {
			return nil, err
		}
		if seen[r.String()] {
			continue
		}
		seen[r.String()] = true
		resources = append(resources, r)
	}

	if len(resources) == 0 {
		return nil, errors.New("at least one resource is required (config file or owner/repo arguments)")
	}

	opts := []repowatch.Option{
		repowatch.WithResources(resources...),
		repowatch.WithLogger(logger),
		repowatch.WithSink(repowatch.NewLogSink(logger)),
	}

	if interval := firstDuration(ov.interval, time.Duration(cfg.PollInterval)); interval != 0 {
		opts = append(opts, repowatch.WithBaseInterval(interval))
	}
	if token := firstString(ov.token, cfg.Token); token != "" {
		opts = append(opts, repowatch.WithToken(token))
	}
	if port := firstInt(ov.statusPort, cfg.StatusPort); port != 0 {
		opts = append(opts, repowatch.WithStatusPort(port))
	}
	if journal := firstString(ov.journal, cfg.Journal); journal != "" {
		opts = append(opts, repowatch.WithJournal(journal))
	}

	if cfg.APIURL != "" {
		opts = append(opts, repowatch.WithBaseURL(cfg.APIURL))
	}
	if cfg.RateFloor != 0 {
		opts = append(opts, repowatch.WithRateFloor(cfg.RateFloor))
	}
	if cfg.MaxRetries != 0 {
		opts = append(opts, repowatch.WithMaxRetries(cfg.MaxRetries))
	}

	return opts, nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstDuration(vals ...time.Duration) time.Duration {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func runWatch(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	cfg := &config.Config{}
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Info("config loaded",
			"resources", len(cfg.Resources),
			"groups", len(cfg.Groups),
		)
	}

	var ov watchOverrides
	ov.token, _ = cmd.Flags().GetString("token")
	ov.interval, _ = cmd.Flags().GetDuration("interval")
	ov.statusPort, _ = cmd.Flags().GetInt("status-port")
	ov.journal, _ = cmd.Flags().GetString("journal")

	opts, err := watchOptions(cfg, args, ov, logger)
	if err != nil {
		return err
	}

	w, err := repowatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start watching - blocks until context cancelled or all feeds die
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	// wait for the watcher to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
