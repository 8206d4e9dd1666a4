package config

import (
	"github.com/jpalmerr/repowatch"
)

// BuildResources converts parsed configuration into SDK Resource objects.
//
// It processes both direct resources and groups, returning a combined
// slice. Each group expands to one resource per listed repo, all sharing
// the group's interval and filter.
func BuildResources(cfg *Config) ([]repowatch.Resource, error) {
	var resources []repowatch.Resource

	// convert direct resources
	for _, rc := range cfg.Resources {
		r, err := buildResource(rc)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}

	// expand groups
	for _, gc := range cfg.Groups {
		for _, repo := range gc.Repos {
			r, err := buildResource(ResourceConfig{
				Repo:     gc.Owner + "/" + repo,
				Interval: gc.Interval,
				Filter:   gc.Filter,
			})
			if err != nil {
				return nil, err
			}
			resources = append(resources, r)
		}
	}

	return resources, nil
}

// buildResource converts a single ResourceConfig to an SDK Resource.
func buildResource(rc ResourceConfig) (repowatch.Resource, error) {
	var opts []repowatch.ResourceOption

	if rc.Interval != 0 {
		opts = append(opts, repowatch.WithResourceInterval(rc.Interval.Duration()))
	}

	if filter := buildFilter(rc.Filter); filter != nil {
		opts = append(opts, repowatch.WithResourceFilter(filter))
	}

	return repowatch.NewResource(rc.Repo, opts...)
}

// buildFilter converts FilterConfig to an ItemFilter function.
// Returns nil for an empty filter (SDK delivers everything).
func buildFilter(fc FilterConfig) repowatch.ItemFilter {
	if fc.Empty() {
		return nil
	}

	var filters []repowatch.ItemFilter
	if len(fc.Types) > 0 {
		filters = append(filters, repowatch.Types(fc.Types...))
	}
	if len(fc.Actors) > 0 {
		filters = append(filters, repowatch.Actors(fc.Actors...))
	}

	if len(filters) == 1 {
		return filters[0]
	}
	return repowatch.All(filters...)
}
