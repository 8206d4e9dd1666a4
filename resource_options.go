package repowatch

import (
	"errors"
	"time"
)

// resourceConfig holds mutable state during resource construction.
type resourceConfig struct {
	interval time.Duration
	filter   ItemFilter
}

// ResourceOption is a function that configures a [Resource] during construction.
//
// ResourceOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewResource] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithResourceInterval], [WithResourceFilter].
type ResourceOption func(*resourceConfig) error

// WithResourceInterval sets a custom polling interval for this resource.
//
// When set, this feed is polled at the specified interval instead of the
// watcher's base interval. Use this to watch busy repositories more
// frequently or quiet ones less frequently. The effective interval may
// still be stretched when the shared rate budget runs low.
//
// The interval must be at least 1 second and at most 1 hour.
// Returns an error if the interval is outside these bounds.
//
// If not specified, the resource uses the base interval configured via
// [WithBaseInterval].
//
// Example:
//
//	busy, _ := repowatch.NewResource("kubernetes/kubernetes",
//	    repowatch.WithResourceInterval(30 * time.Second),
//	)
//
//	quiet, _ := repowatch.NewResource("golang/proposal",
//	    repowatch.WithResourceInterval(10 * time.Minute),
//	)
func WithResourceInterval(d time.Duration) ResourceOption {
	return func(cfg *resourceConfig) error {
		if d < time.Second {
			return errors.New("resource interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("resource interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

// WithResourceFilter sets an [ItemFilter] for this resource.
//
// Only events the filter keeps are delivered to the sink. Filtered events
// still advance the feed's position, so enabling or changing a filter never
// replays previously seen history.
//
// If not specified, every event is delivered.
//
// Example:
//
//	repo, err := repowatch.NewResource("golang/go",
//	    repowatch.WithResourceFilter(repowatch.Types("PushEvent", "ReleaseEvent")),
//	)
func WithResourceFilter(f ItemFilter) ResourceOption {
	return func(cfg *resourceConfig) error {
		cfg.filter = f
		return nil
	}
}
