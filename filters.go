package repowatch

import (
	"fmt"
	"strings"
)

// ItemFilter is a function type that decides whether an [Item] is delivered
// to the sink.
//
// ItemFilter follows functional programming principles: it is a pure
// function where the same input always produces the same output. This makes
// filters easy to test, compose, and reason about.
//
// Returns true to keep the item, false to drop it. Dropped items still
// advance the feed's position.
//
// Several built-in filters are provided: [Types], [Actors], [Any], [All],
// and [ParseFilter] for the textual form used in configuration files.
//
// # Panic Safety
//
// ItemFilter functions are called within a panic recovery boundary. If a
// filter panics, the panic is logged with a correlation ID and the item is
// kept, so a misbehaving filter loses events to noise rather than silence.
type ItemFilter func(item Item) bool

// Types returns an [ItemFilter] that keeps events whose type is one of the
// given kinds. Comparison is exact and case-sensitive; event types are
// CamelCase identifiers like "PushEvent".
//
// Example:
//
//	filter := repowatch.Types("PushEvent", "ReleaseEvent")
func Types(kinds ...string) ItemFilter {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(item Item) bool {
		_, ok := set[item.Type]
		return ok
	}
}

// Actors returns an [ItemFilter] that keeps events produced by one of the
// given logins. Comparison is case-insensitive, matching how the service
// treats login names.
//
// Example:
//
//	filter := repowatch.Actors("gopherbot", "dependabot[bot]")
func Actors(logins ...string) ItemFilter {
	set := make(map[string]struct{}, len(logins))
	for _, l := range logins {
		set[strings.ToLower(l)] = struct{}{}
	}
	return func(item Item) bool {
		_, ok := set[strings.ToLower(item.Actor)]
		return ok
	}
}

// Any returns an [ItemFilter] that keeps events matching at least one of
// the given filters. With no arguments the filter keeps nothing.
//
// Example:
//
//	filter := repowatch.Any(
//	    repowatch.Types("ReleaseEvent"),
//	    repowatch.Actors("gopherbot"),
//	)
func Any(filters ...ItemFilter) ItemFilter {
	return func(item Item) bool {
		for _, f := range filters {
			if f(item) {
				return true
			}
		}
		return false
	}
}

// All returns an [ItemFilter] that keeps events matching every one of the
// given filters. With no arguments the filter keeps everything.
//
// Example:
//
//	filter := repowatch.All(
//	    repowatch.Types("PushEvent"),
//	    repowatch.Actors("gopherbot"),
//	)
func All(filters ...ItemFilter) ItemFilter {
	return func(item Item) bool {
		for _, f := range filters {
			if !f(item) {
				return false
			}
		}
		return true
	}
}

// ParseFilter builds an [ItemFilter] from its compact textual form, used by
// configuration files and command-line flags.
//
// The form is one or more space-separated clauses, each "types:" or
// "actors:" followed by a comma-separated value list. Multiple clauses are
// combined with [All].
//
// Examples:
//
//	types:PushEvent,ReleaseEvent
//	actors:gopherbot
//	types:PushEvent actors:gopherbot,dependabot[bot]
//
// Returns an error for an unknown clause or an empty value list.
func ParseFilter(spec string) (ItemFilter, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty filter")
	}

	var filters []ItemFilter
	for _, clause := range fields {
		key, values, found := strings.Cut(clause, ":")
		if !found || values == "" {
			return nil, fmt.Errorf("filter clause %q must be \"types:...\" or \"actors:...\"", clause)
		}

		parts := strings.Split(values, ",")
		switch key {
		case "types":
			filters = append(filters, Types(parts...))
		case "actors":
			filters = append(filters, Actors(parts...))
		default:
			return nil, fmt.Errorf("unknown filter clause %q (want \"types\" or \"actors\")", key)
		}
	}

	if len(filters) == 1 {
		return filters[0], nil
	}
	return All(filters...), nil
}

// MustParseFilter is like [ParseFilter] but panics if the spec is invalid.
//
// Use this for compile-time constant specs where you want to fail fast.
// For runtime specs, use [ParseFilter] instead.
//
// Example:
//
//	var releases = repowatch.MustParseFilter("types:ReleaseEvent")
func MustParseFilter(spec string) ItemFilter {
	filter, err := ParseFilter(spec)
	if err != nil {
		panic("repowatch: invalid filter spec: " + err.Error())
	}
	return filter
}
