// Package repowatch provides a long-running watcher for repository activity
// feeds, delivering new events to a sink as they appear.
//
// Repowatch is designed as an SDK-first library, allowing developers to
// embed feed watching in their applications. It polls each configured
// repository's public events feed with conditional requests, paces itself
// against the service's rate-limit budget, and hands every genuinely new
// event to a caller-supplied sink exactly once per process run (with at most
// one duplicate after a partial delivery failure, never a gap).
//
// # Quick Start
//
// Create resources and start watching with graceful shutdown:
//
//	repo, _ := repowatch.NewResource("golang/go")
//	w, _ := repowatch.New(
//	    repowatch.WithResource(repo),
//	    repowatch.WithSink(repowatch.NewLogSink(nil)),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Repowatch uses the functional options pattern for configuration:
//
//	w, err := repowatch.New(
//	    repowatch.WithResources(repo1, repo2),
//	    repowatch.WithSink(sink),
//	    repowatch.WithToken(os.Getenv("API_TOKEN")),
//	    repowatch.WithBaseInterval(2 * time.Minute),
//	    repowatch.WithStatusPort(9090),
//	)
//
// Resources can also be configured with options:
//
//	repo, err := repowatch.NewResource("golang/go",
//	    repowatch.WithResourceInterval(30 * time.Second),
//	    repowatch.WithResourceFilter(repowatch.Types("PushEvent", "ReleaseEvent")),
//	)
//
// # Item Filters
//
// Filters select which events reach the sink. Several built-in filters are
// provided:
//
//   - [Types]: Keep events whose type is in a given set
//   - [Actors]: Keep events produced by a given set of logins
//   - [Any]: Keep events matching at least one of several filters
//   - [All]: Keep events matching every one of several filters
//   - [ParseFilter]: Build a filter from a compact textual form
//
// Custom filters can be created by implementing the [ItemFilter] function
// type. Filtered events still advance the feed's cursor, so changing a
// filter never replays history.
//
// # Delivery Guarantees
//
// Within a feed, events are delivered oldest first, in feed order. The
// watcher only records its position after the sink has accepted every event
// of a poll, so a delivery failure causes a re-poll rather than a silent
// drop. A freshly watched feed is seeded silently: its existing backlog
// establishes the starting position without being delivered.
//
// # Architecture
//
// Repowatch consists of several internal packages (under internal/):
//
//   - internal/feed: Conditional fetching, rate budgeting, and the
//     per-feed poll/emit/commit loop
//   - internal/store: In-memory status storage with pub/sub
//   - internal/server: HTTP status API with REST and Server-Sent Events
//   - internal/journal: Optional SQLite-backed delivery journal
//
// The internal packages are not part of the public API and may change
// without notice.
package repowatch
