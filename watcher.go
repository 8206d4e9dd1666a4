package repowatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/repowatch/internal/feed"
	"github.com/jpalmerr/repowatch/internal/journal"
	"github.com/jpalmerr/repowatch/internal/server"
	"github.com/jpalmerr/repowatch/internal/store"
)

const (
	defaultBaseInterval   = 60 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultRateFloor      = 10
	defaultMaxRetries     = 3

	// defaultMaxBackoff caps how long a rate-limited feed sleeps when the
	// budget's reset time is unknown.
	defaultMaxBackoff = 15 * time.Minute
)

// ErrAllFeedsStopped is returned by [Watcher.Start] when every watched feed
// has failed permanently. As long as at least one feed is healthy the
// watcher keeps running.
var ErrAllFeedsStopped = feed.ErrAllFeedsStopped

// Watcher is the main orchestrator for feed polling and event delivery.
//
// Watcher coordinates the polling of repository activity feeds, paces all
// feeds against one shared rate budget, and delivers new events to the
// configured [Sink]. It is created using [New] with functional options and
// started with [Watcher.Start].
//
// The typical lifecycle is:
//
//	w, err := repowatch.New(repowatch.WithResource(repo), repowatch.WithSink(sink))
//	if err != nil {
//	    slog.Error("failed to create watcher", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	w.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Watcher struct {
	resources       []Resource
	sink            Sink
	token           string
	baseURL         string
	baseInterval    time.Duration
	requestTimeout  time.Duration
	statusPort      int
	rateFloor       int
	maxRetries      int
	journalPath     string
	logger          *slog.Logger
	statusCallbacks []func(FeedStatus)
}

// New creates a new [Watcher] instance with the given options.
//
// At least one resource must be configured via [WithResource] or
// [WithResources]. Other options have sensible defaults:
//   - Base interval: 60 seconds
//   - Request timeout: 10 seconds
//   - Rate floor: 10
//   - Max retries: 3
//   - Sink: [LogSink] on the watcher's logger
//   - Status server: disabled
//
// Returns an error if no resources are configured, a resource appears
// twice, or any option is invalid.
//
// Example:
//
//	w, err := repowatch.New(
//	    repowatch.WithResource(repo),
//	    repowatch.WithSink(sink),
//	    repowatch.WithBaseInterval(2 * time.Minute),
//	    repowatch.WithStatusPort(9090),
//	)
func New(opts ...Option) (*Watcher, error) {
	cfg := &watcherConfig{
		resources:      []Resource{},
		baseInterval:   defaultBaseInterval,
		requestTimeout: defaultRequestTimeout,
		rateFloor:      defaultRateFloor,
		maxRetries:     defaultMaxRetries,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.resources) == 0 {
		return nil, errors.New("at least one resource is required")
	}

	// validate resource uniqueness (each feed carries its own cursor)
	seen := make(map[string]bool, len(cfg.resources))
	for _, r := range cfg.resources {
		if seen[r.String()] {
			return nil, fmt.Errorf("duplicate resource: %q", r.String())
		}
		seen[r.String()] = true
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	sink := cfg.sink
	if sink == nil {
		sink = NewLogSink(logger)
	}

	return &Watcher{
		resources:       cfg.resources,
		sink:            sink,
		token:           cfg.token,
		baseURL:         cfg.baseURL,
		baseInterval:    cfg.baseInterval,
		requestTimeout:  cfg.requestTimeout,
		statusPort:      cfg.statusPort,
		rateFloor:       cfg.rateFloor,
		maxRetries:      cfg.maxRetries,
		journalPath:     cfg.journalPath,
		logger:          logger,
		statusCallbacks: cfg.statusCallbacks,
	}, nil
}

// Start begins watching the configured feeds and delivering events.
//
// Start is a blocking call that runs until the provided context is
// cancelled or every feed has failed permanently. During execution:
//
//   - Each feed is seeded first: its existing backlog establishes the
//     starting position silently, without any delivery
//   - Feeds are then polled concurrently, each at its own interval, all
//     paced against one shared rate budget
//   - New events are delivered to the sink oldest first, in feed order
//   - If a status port is configured, the HTTP status API starts on it
//
// The caller controls the lifecycle via context cancellation. For signal
// handling, use [signal.NotifyContext]:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	w.Start(ctx)
//
// Returns nil on graceful shutdown. Returns an error wrapping
// [ErrAllFeedsStopped] if every feed failed, or an error if the status
// server or journal could not be started.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("repowatch starting", "feed_count", len(w.resources))
	w.logger.Info("polling configured", "base_interval", w.baseInterval.String())

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	// the pollers and the status server share a context that ends when
	// Start returns, so an all-feeds-stopped exit also closes the listener
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	budget := feed.NewBudget(w.rateFloor, defaultMaxBackoff)
	fetcher := feed.NewClient(w.baseURL, w.token, w.requestTimeout, budget)

	var jnl *journal.Journal
	if w.journalPath != "" {
		var err error
		jnl, err = journal.Open(w.journalPath)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() { _ = jnl.Close() }()
		w.logger.Info("journal enabled", "path", w.journalPath)
	}

	statusStore := store.NewMemoryStore()
	adapter := &sinkAdapter{sink: w.sink, journal: jnl, logger: w.logger}
	onStatus := w.statusHook(statusStore)

	pollers := make([]*feed.Poller, 0, len(w.resources))
	for _, r := range w.resources {
		pollers = append(pollers, feed.NewPoller(feed.PollerConfig{
			Source:       w.toSource(r),
			Fetcher:      fetcher,
			Budget:       budget,
			Sink:         adapter,
			Logger:       w.logger,
			BaseInterval: w.baseInterval,
			MaxRetries:   w.maxRetries,
			OnStatus:     onStatus,
		}))
	}

	// start the status API if configured
	if w.statusPort > 0 {
		httpServer := server.NewServer(statusStore, w.statusPort, w.logger)
		if err := httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		w.logger.Info("status api available", "url", fmt.Sprintf("http://localhost:%d/api/feeds", w.statusPort))
	}

	err := feed.NewSupervisor(pollers, w.logger).Run(ctx)
	w.logger.Info("repowatch stopped")
	return err
}

// Resources returns a copy of the configured resources.
//
// The returned slice is a copy; modifying it does not affect the Watcher.
// Each [Resource] in the slice is immutable.
func (w *Watcher) Resources() []Resource {
	cp := make([]Resource, len(w.resources))
	copy(cp, w.resources)
	return cp
}

// StatusPort returns the configured HTTP port for the status API.
// Zero means the status API is disabled.
func (w *Watcher) StatusPort() int {
	return w.statusPort
}

// BaseInterval returns the configured default delay between polls.
func (w *Watcher) BaseInterval() time.Duration {
	return w.baseInterval
}

// toSource converts a public Resource to the engine's source type,
// wrapping the filter with panic recovery.
func (w *Watcher) toSource(r Resource) feed.Source {
	var filter func(feed.Item) bool
	if r.filter != nil {
		f := r.filter
		feedName := r.String()
		filter = func(item feed.Item) bool {
			return w.filterSafe(f, feedItemToPublic(item), feedName)
		}
	}
	return feed.Source{
		Owner:    r.owner,
		Name:     r.name,
		Interval: r.interval,
		Filter:   filter,
	}
}

// filterSafe calls an item filter with panic recovery.
// If the filter panics, it logs the panic with a correlation ID and keeps
// the item; a broken filter should add noise, not lose events.
func (w *Watcher) filterSafe(f ItemFilter, item Item, feedName string) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			w.logger.Error("item filter panicked",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"feed", feedName,
				"item", item.ID,
			)
			keep = true
		}
	}()
	return f(item)
}

// statusHook builds the per-poll status consumer: store update first
// (callbacks fire after data is persisted), then registered callbacks.
func (w *Watcher) statusHook(st store.Store) func(feed.Status) {
	return func(fs feed.Status) {
		st.Update(statusToStoreStatus(fs))

		if len(w.statusCallbacks) > 0 {
			public := statusToPublicStatus(fs)
			for _, cb := range w.statusCallbacks {
				invokeCallbackSafe(cb, public, w.logger)
			}
		}
	}
}

// statusToStoreStatus converts an engine status to its storage form.
func statusToStoreStatus(fs feed.Status) store.FeedStatus {
	var errStr *string
	if fs.LastError != "" {
		s := fs.LastError
		errStr = &s
	}

	return store.FeedStatus{
		Source:         fs.Source,
		State:          string(fs.State),
		LastPollAt:     fs.LastPollAt,
		ItemsDelivered: fs.ItemsDelivered,
		LastEventID:    fs.LastEventID,
		Remaining:      fs.Remaining,
		Error:          errStr,
	}
}

// statusToPublicStatus converts an engine status to the public API type.
func statusToPublicStatus(fs feed.Status) FeedStatus {
	return FeedStatus{
		Source:         fs.Source,
		State:          FeedState(fs.State),
		LastPollAt:     fs.LastPollAt,
		ItemsDelivered: fs.ItemsDelivered,
		LastEventID:    fs.LastEventID,
		Remaining:      fs.Remaining,
		LastError:      fs.LastError,
	}
}

// feedItemToPublic converts an engine item to the public API type.
// Creates a defensive copy of the payload to prevent data races.
func feedItemToPublic(item feed.Item) Item {
	return Item{
		ID:        item.ID,
		Type:      item.Type,
		Actor:     item.Actor,
		Repo:      item.Repo,
		CreatedAt: item.CreatedAt,
		Payload:   copyBytes(item.Payload),
	}
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(FeedStatus), status FeedStatus, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"panic", r,
				"feed", status.Source,
			)
		}
	}()
	cb(status)
}
