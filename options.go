package repowatch

import (
	"errors"
	"log/slog"
	"time"
)

// watcherConfig holds mutable state during Watcher construction.
type watcherConfig struct {
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

// Option is a function that configures a [Watcher] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithResource], [WithResources], [WithSink],
// [WithToken], [WithBaseURL], [WithBaseInterval], [WithStatusPort],
// [WithRateFloor], [WithMaxRetries], [WithRequestTimeout], [WithJournal],
// [WithLogger], [WithStatusCallback].
type Option func(*watcherConfig) error

// WithResource adds a single [Resource] to the watch list.
//
// Can be called multiple times to add multiple resources. At least one
// resource must be configured for [New] to succeed.
//
// Example:
//
//	w, err := repowatch.New(
//	    repowatch.WithResource(repo1),
//	    repowatch.WithResource(repo2),
//	)
func WithResource(r Resource) Option {
	return func(cfg *watcherConfig) error {
		cfg.resources = append(cfg.resources, r)
		return nil
	}
}

// WithResources adds multiple [Resource] values to the watch list.
//
// This is a convenience function for adding several resources at once.
// Equivalent to calling [WithResource] multiple times.
//
// Example:
//
//	w, err := repowatch.New(
//	    repowatch.WithResources(repo1, repo2, repo3),
//	)
func WithResources(resources ...Resource) Option {
	return func(cfg *watcherConfig) error {
		cfg.resources = append(cfg.resources, resources...)
		return nil
	}
}

// WithSink sets the [Sink] that receives delivered events and heartbeats.
//
// If not specified, a [LogSink] writing to the watcher's logger is used.
//
// Example:
//
//	w, err := repowatch.New(
//	    repowatch.WithResource(repo),
//	    repowatch.WithSink(mySink),
//	)
//
// Returns an error if the sink is nil.
func WithSink(s Sink) Option {
	return func(cfg *watcherConfig) error {
		if s == nil {
			return errors.New("sink cannot be nil")
		}
		cfg.sink = s
		return nil
	}
}

// WithToken sets the bearer credential sent with every feed request.
//
// Anonymous access works but carries a far smaller rate-limit budget.
// If not specified, requests are made anonymously.
func WithToken(token string) Option {
	return func(cfg *watcherConfig) error {
		cfg.token = token
		return nil
	}
}

// WithBaseURL sets the API root the watcher polls against.
//
// Useful for testing against a mock server or pointing at an enterprise
// installation. If not specified, the public API root is used.
//
// Returns an error if the URL is empty.
func WithBaseURL(rawURL string) Option {
	return func(cfg *watcherConfig) error {
		if rawURL == "" {
			return errors.New("base URL cannot be empty")
		}
		cfg.baseURL = rawURL
		return nil
	}
}

// WithBaseInterval sets the default delay between polls of one feed.
//
// Individual resources may override this via [WithResourceInterval], and
// the effective delay is stretched when the shared rate budget runs low.
// Defaults to 60 seconds, the documented minimum for the public events
// feed.
//
// Example:
//
//	w, err := repowatch.New(
//	    repowatch.WithResource(repo),
//	    repowatch.WithBaseInterval(2 * time.Minute),
//	)
//
// Returns an error if the duration is zero or negative.
func WithBaseInterval(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d <= 0 {
			return errors.New("base interval must be positive")
		}
		cfg.baseInterval = d
		return nil
	}
}

// WithStatusPort enables the HTTP status API on the given port.
//
// The API serves a JSON snapshot of every feed's progress at /api/feeds and
// a Server-Sent Events stream of updates at /api/sse. A port of 0 (the
// default) disables the server entirely.
//
// Example:
//
//	w, err := repowatch.New(
//	    repowatch.WithResource(repo),
//	    repowatch.WithStatusPort(9090),
//	)
//
// Returns an error if the port is outside the range 0-65535.
func WithStatusPort(port int) Option {
	return func(cfg *watcherConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("status port must be between 0 and 65535")
		}
		cfg.statusPort = port
		return nil
	}
}

// WithRateFloor sets the remaining-budget threshold below which polling
// slows down.
//
// When the observed remaining request count drops to the floor or below,
// polls are stretched out toward the budget's reset time instead of running
// at the configured interval. Defaults to 10 if not specified.
//
// Returns an error if the floor is negative.
func WithRateFloor(n int) Option {
	return func(cfg *watcherConfig) error {
		if n < 0 {
			return errors.New("rate floor cannot be negative")
		}
		cfg.rateFloor = n
		return nil
	}
}

// WithMaxRetries bounds consecutive transient failures per feed.
//
// A feed that fails this many times in a row (network errors, 5xx
// responses, or sink delivery failures) is stopped; other feeds keep
// running. Defaults to 3 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxRetries(n int) Option {
	return func(cfg *watcherConfig) error {
		if n <= 0 {
			return errors.New("max retries must be positive")
		}
		cfg.maxRetries = n
		return nil
	}
}

// WithRequestTimeout sets the timeout for each individual feed request.
//
// Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithJournal enables the SQLite-backed delivery journal at the given path.
//
// Every event the sink accepts is also recorded in the journal, giving the
// history command something to show across restarts. Journal writes are
// best-effort: a write failure is logged but does not fail delivery.
//
// If not specified, no journal is kept.
//
// Returns an error if the path is empty.
func WithJournal(path string) Option {
	return func(cfg *watcherConfig) error {
		if path == "" {
			return errors.New("journal path cannot be empty")
		}
		cfg.journalPath = path
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Watcher instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	w, err := repowatch.New(
//	    repowatch.WithResource(repo),
//	    repowatch.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *watcherConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusCallback registers a function to be called after every poll.
//
// The callback receives a [FeedStatus] snapshot containing the feed's
// state, delivery counters, and the shared budget's remaining count.
//
// Multiple callbacks may be registered by calling WithStatusCallback
// multiple times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. Long-running operations should
// dispatch work to a separate goroutine. Callbacks are invoked from the
// goroutine of the feed they report on; panics within callbacks are
// recovered and logged.
//
// Example:
//
//	w, err := repowatch.New(
//	    repowatch.WithResource(repo),
//	    repowatch.WithStatusCallback(func(st repowatch.FeedStatus) {
//	        if st.State == repowatch.FeedStopped {
//	            log.Printf("ALERT: %s stopped: %s", st.Source, st.LastError)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(FeedStatus)) Option {
	return func(cfg *watcherConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}
