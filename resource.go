package repowatch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resource represents a repository whose activity feed is watched.
//
// Resource is immutable after creation via [NewResource]. All fields are
// private with getter methods, ensuring the resource cannot be modified
// after construction.
//
// Resources are configured using the functional options pattern with
// [ResourceOption] functions such as [WithResourceInterval] and
// [WithResourceFilter].
type Resource struct {
	owner    string
	name     string
	interval time.Duration
	filter   ItemFilter
}

// Owner returns the account that owns the watched repository.
func (r Resource) Owner() string {
	return r.owner
}

// Name returns the repository name within the owner's namespace.
func (r Resource) Name() string {
	return r.name
}

// String returns the canonical "owner/name" form of the resource.
// This implements the fmt.Stringer interface.
func (r Resource) String() string {
	return r.owner + "/" + r.name
}

// Interval returns the resource's custom polling interval.
// Returns 0 if no custom interval was specified, meaning the watcher's base
// interval configured via [WithBaseInterval] should be used.
func (r Resource) Interval() time.Duration {
	return r.interval
}

// Filter returns the resource's [ItemFilter].
// Returns nil if no filter was specified; a nil filter keeps every event.
func (r Resource) Filter() ItemFilter {
	return r.filter
}

// NewResource creates a [Resource] from its "owner/name" path and options.
//
// The path must contain exactly one slash separating a non-empty owner from
// a non-empty name; neither part may contain whitespace.
//
// Options are applied in order using the functional options pattern.
// See [WithResourceInterval] and [WithResourceFilter].
//
// Example:
//
//	repo, err := repowatch.NewResource("golang/go",
//	    repowatch.WithResourceInterval(30 * time.Second),
//	    repowatch.WithResourceFilter(repowatch.Types("ReleaseEvent")),
//	)
func NewResource(path string, opts ...ResourceOption) (Resource, error) {
	owner, name, err := splitResourcePath(path)
	if err != nil {
		return Resource{}, err
	}

	cfg := &resourceConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Resource{}, err
		}
	}

	return Resource{
		owner:    owner,
		name:     name,
		interval: cfg.interval,
		filter:   cfg.filter,
	}, nil
}

// splitResourcePath validates and splits an "owner/name" path.
func splitResourcePath(path string) (owner, name string, err error) {
	if path == "" {
		return "", "", errors.New("resource path cannot be empty")
	}

	owner, name, found := strings.Cut(path, "/")
	if !found || owner == "" || name == "" {
		return "", "", fmt.Errorf("resource path must be \"owner/name\", got %q", path)
	}
	if strings.Contains(name, "/") {
		return "", "", fmt.Errorf("resource path must contain exactly one slash, got %q", path)
	}
	if strings.ContainsAny(owner, " \t") || strings.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("resource path must not contain whitespace, got %q", path)
	}

	return owner, name, nil
}
