// Package config provides YAML configuration parsing for repowatch.
//
// This package enables running repowatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	token: ${REPOWATCH_TOKEN:-}
//	poll_interval: 60s
//	status_port: 9090
//	journal: repowatch.db
//
//	resources:
//	  - repo: golang/go
//	    interval: 30s
//	    filter: types:PushEvent,ReleaseEvent
//
//	groups:
//	  - owner: kubernetes
//	    repos: [kubernetes, minikube]
//	    filter: types:ReleaseEvent
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental DoS of the feed service with overly aggressive polling.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for repowatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Token is the bearer credential for feed requests.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}.
	// Empty means anonymous access.
	Token string `yaml:"token"`

	// APIURL is the API root to poll against. Defaults to the public API.
	// Supports environment variable substitution.
	APIURL string `yaml:"api_url"`

	// PollInterval is the default time between polls of one feed.
	// Accepts duration strings like "60s", "2m". Defaults to 60s.
	PollInterval Duration `yaml:"poll_interval"`

	// StatusPort is the HTTP port for the status API. 0 (the default)
	// disables the status server.
	StatusPort int `yaml:"status_port"`

	// RateFloor is the remaining-budget threshold below which polling
	// slows down. 0 means the SDK default.
	RateFloor int `yaml:"rate_floor"`

	// MaxRetries bounds consecutive transient failures per feed.
	// 0 means the SDK default.
	MaxRetries int `yaml:"max_retries"`

	// Journal is the path of the SQLite delivery journal.
	// Supports environment variable substitution. Empty disables the journal.
	Journal string `yaml:"journal"`

	// Resources defines individual watched repositories.
	Resources []ResourceConfig `yaml:"resources"`

	// Groups defines sets of repositories under one owner that share
	// settings; each group expands to one resource per listed repo.
	Groups []GroupConfig `yaml:"groups"`
}

// ResourceConfig defines a single watched repository.
type ResourceConfig struct {
	// Repo is the repository in "owner/name" form.
	Repo string `yaml:"repo"`

	// Interval is the custom polling interval for this feed.
	// If not specified, uses the global poll_interval.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// Filter selects which events are delivered.
	// Can be shorthand ("types:PushEvent,ReleaseEvent") or structured.
	Filter FilterConfig `yaml:"filter"`
}

// GroupConfig defines several repositories under one owner that share
// interval and filter settings.
//
// For example, {owner: kubernetes, repos: [kubernetes, minikube]} expands
// to the resources kubernetes/kubernetes and kubernetes/minikube.
type GroupConfig struct {
	// Owner is the account that owns every repo in the group.
	Owner string `yaml:"owner"`

	// Repos lists the repository names within the owner's namespace.
	Repos []string `yaml:"repos"`

	// Interval is the custom polling interval for all expanded feeds.
	// If not specified, uses the global poll_interval.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// Filter selects which events are delivered, for all expanded feeds.
	Filter FilterConfig `yaml:"filter"`
}

// FilterConfig specifies which events are delivered to the sink.
//
// It supports two formats in YAML:
//
// Shorthand string (space-separated clauses, comma-separated values):
//
//	filter: types:PushEvent,ReleaseEvent
//	filter: types:PushEvent actors:gopherbot
//
// Structured object:
//
//	filter:
//	  types: [PushEvent, ReleaseEvent]
//	  actors: [gopherbot]
type FilterConfig struct {
	// Types keeps only events of the listed kinds. Empty keeps all kinds.
	Types []string

	// Actors keeps only events produced by the listed logins.
	// Empty keeps all actors.
	Actors []string
}

// Empty reports whether the filter keeps everything.
func (f FilterConfig) Empty() bool {
	return len(f.Types) == 0 && len(f.Actors) == 0
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for FilterConfig.
func (f *FilterConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return f.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Types  []string `yaml:"types"`
			Actors []string `yaml:"actors"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		f.Types = raw.Types
		f.Actors = raw.Actors
		return nil
	}

	return fmt.Errorf("filter must be a string or object, got %v", node.Kind)
}

// parseShorthand parses filter shorthand syntax.
//
// Supported clauses, space-separated and combined with AND:
//   - "types:A,B" → keep only events of kind A or B
//   - "actors:x,y" → keep only events produced by x or y
func (f *FilterConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, clause := range strings.Fields(s) {
		key, values, found := strings.Cut(clause, ":")
		if !found || values == "" {
			return fmt.Errorf("filter clause %q must be \"types:...\" or \"actors:...\"", clause)
		}

		parts := strings.Split(values, ",")
		switch key {
		case "types":
			f.Types = append(f.Types, parts...)
		case "actors":
			f.Actors = append(f.Actors, parts...)
		default:
			return fmt.Errorf("unknown filter clause %q (expected 'types' or 'actors')", key)
		}
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in Token, APIURL, and Journal values.
// PollInterval defaults to 60s.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(60 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("status_port must be between 0 and 65535, got %d", c.StatusPort)
	}
	if c.RateFloor < 0 {
		return fmt.Errorf("rate_floor cannot be negative, got %d", c.RateFloor)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", c.MaxRetries)
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"token", &c.Token},
		{"api_url", &c.APIURL},
		{"journal", &c.Journal},
	} {
		expanded, err := expandEnvVars(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}

	for i := range c.Resources {
		rc := &c.Resources[i]

		if rc.Repo == "" {
			return fmt.Errorf("resources[%d]: repo is required", i)
		}
		if err := validateRepoPath(rc.Repo); err != nil {
			return fmt.Errorf("resources[%d] (%s): %w", i, rc.Repo, err)
		}
		if err := validateInterval(rc.Interval, fmt.Sprintf("resources[%d] (%s)", i, rc.Repo)); err != nil {
			return err
		}
	}

	for i := range c.Groups {
		g := &c.Groups[i]

		if g.Owner == "" {
			return fmt.Errorf("groups[%d]: owner is required", i)
		}
		if strings.Contains(g.Owner, "/") {
			return fmt.Errorf("groups[%d] (%s): owner must not contain a slash", i, g.Owner)
		}
		if len(g.Repos) == 0 {
			return fmt.Errorf("groups[%d] (%s): at least one repo is required", i, g.Owner)
		}

		seen := make(map[string]struct{}, len(g.Repos))
		for _, repo := range g.Repos {
			if repo == "" {
				return fmt.Errorf("groups[%d] (%s): repo name cannot be empty", i, g.Owner)
			}
			if strings.Contains(repo, "/") {
				return fmt.Errorf("groups[%d] (%s): repo %q must not contain a slash (the owner is implied)", i, g.Owner, repo)
			}
			if _, exists := seen[repo]; exists {
				return fmt.Errorf("groups[%d] (%s): duplicate repo %q", i, g.Owner, repo)
			}
			seen[repo] = struct{}{}
		}

		if err := validateInterval(g.Interval, fmt.Sprintf("groups[%d] (%s)", i, g.Owner)); err != nil {
			return err
		}
	}

	if len(c.Resources) == 0 && len(c.Groups) == 0 {
		return errors.New("at least one resource or group must be defined")
	}

	return nil
}

// validateRepoPath checks the "owner/name" form without interpreting it.
func validateRepoPath(path string) error {
	owner, name, found := strings.Cut(path, "/")
	if !found || owner == "" || name == "" {
		return fmt.Errorf("repo must be \"owner/name\"")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("repo must contain exactly one slash")
	}
	return nil
}

// validateInterval checks a per-feed interval, 0 meaning "use the default".
func validateInterval(d Duration, context string) error {
	if d == 0 {
		return nil
	}
	if d.Duration() < time.Second {
		return fmt.Errorf("%s: interval must be at least 1s, got %s", context, d.Duration())
	}
	if d.Duration() > time.Hour {
		return fmt.Errorf("%s: interval must not exceed 1h, got %s", context, d.Duration())
	}
	return nil
}
