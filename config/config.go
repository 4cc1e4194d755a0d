// Package config provides YAML configuration parsing for buildwatch.
//
// This package enables running buildwatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	poll_interval: 30s
//	tracker_interval: 5m
//	connect_timeout: 5s
//	database: /var/lib/buildwatch/buildwatch.db
//
//	projects:
//	  - key: website
//	    kind: basic
//	    urls:
//	      - ci.example.com/feed
//	      - ci.example.com/status
//	    username: ${CI_USER}
//	    password: ${CI_PASS}
//	    accept: application/json
//
//	trackers:
//	  - key: issues
//	    urls: [tracker.example.com/validate]
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minInterval is the minimum allowed polling cadence. This prevents
// accidental DoS of backends with overly aggressive polling.
const minInterval = 1 * time.Second

// Config is the root configuration structure for buildwatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// PollInterval is the cadence of CI project polling. Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// TrackerInterval is the cadence of issue-tracker polling.
	// Defaults to 5m.
	TrackerInterval Duration `yaml:"tracker_interval"`

	// ConnectTimeout bounds connection establishment per request.
	// Defaults to 10s.
	ConnectTimeout Duration `yaml:"connect_timeout"`

	// IdleTimeout bounds response inactivity per request. Defaults to 30s.
	IdleTimeout Duration `yaml:"idle_timeout"`

	// MaxRedirects caps redirect hops per request. Defaults to 5.
	MaxRedirects int `yaml:"max_redirects"`

	// WorkloadMaxAge fails workloads older than this. Zero keeps the
	// library default; "0s" is rejected (disable via the SDK only).
	WorkloadMaxAge Duration `yaml:"workload_max_age"`

	// Database is the optional sqlite database path. Empty selects the
	// in-memory store.
	Database string `yaml:"database"`

	// Projects are the tracked CI projects, polled on the short cadence.
	Projects []ProjectConfig `yaml:"projects"`

	// Trackers are issue-tracker validation targets, polled on the long
	// cadence. Kind is implicit.
	Trackers []ProjectConfig `yaml:"trackers"`
}

// ProjectConfig defines a single tracked project.
type ProjectConfig struct {
	// Key is the unique, opaque project identifier.
	Key string `yaml:"key"`

	// Kind is the backend kind: "basic" or "session". Ignored for
	// trackers. Defaults to basic.
	Kind string `yaml:"kind"`

	// URLs are the target URLs polled each cycle. Values support
	// environment variable substitution: ${VAR} or ${VAR:-default}
	URLs []string `yaml:"urls"`

	// Username and Password are the optional credentials. Values support
	// environment variable substitution.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// AuthURL is the authentication endpoint, required for kind: session.
	// Supports environment variable substitution.
	AuthURL string `yaml:"auth_url"`

	// Accept is the optional accepted content type.
	Accept string `yaml:"accept"`
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

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: the variable name
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment values. Returns an error if a variable without a default is
// unset.
func expandEnvVars(s string) (string, error) {
	var expandErr error
	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		name := submatches[1]
		hasDefault := submatches[2] != ""

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return submatches[3]
		}
		if expandErr == nil {
			expandErr = fmt.Errorf("environment variable %q is not set", name)
		}
		return match
	})
	return result, expandErr
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, expands environment variables, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandAndValidate() error {
	if c.PollInterval == 0 {
		c.PollInterval = Duration(30 * time.Second)
	}
	if c.TrackerInterval == 0 {
		c.TrackerInterval = Duration(5 * time.Minute)
	}
	if c.PollInterval.Duration() < minInterval {
		return fmt.Errorf("poll_interval must be at least %s", minInterval)
	}
	if c.TrackerInterval.Duration() < minInterval {
		return fmt.Errorf("tracker_interval must be at least %s", minInterval)
	}
	if c.MaxRedirects < 0 {
		return errors.New("max_redirects cannot be negative")
	}
	if len(c.Projects) == 0 && len(c.Trackers) == 0 {
		return errors.New("at least one project or tracker is required")
	}

	for i := range c.Projects {
		if err := c.Projects[i].expandAndValidate(false); err != nil {
			return fmt.Errorf("projects[%d]: %w", i, err)
		}
	}
	for i := range c.Trackers {
		if err := c.Trackers[i].expandAndValidate(true); err != nil {
			return fmt.Errorf("trackers[%d]: %w", i, err)
		}
	}
	return nil
}

func (p *ProjectConfig) expandAndValidate(tracker bool) error {
	if p.Key == "" {
		return errors.New("key is required")
	}
	if len(p.URLs) == 0 {
		return errors.New("at least one URL is required")
	}

	if tracker {
		if p.Kind != "" && p.Kind != "tracker" {
			return fmt.Errorf("trackers cannot set kind %q", p.Kind)
		}
		p.Kind = "tracker"
	} else {
		if p.Kind == "" {
			p.Kind = "basic"
		}
		if p.Kind != "basic" && p.Kind != "session" {
			return fmt.Errorf("unknown kind %q", p.Kind)
		}
	}

	var err error
	for i, u := range p.URLs {
		if p.URLs[i], err = expandEnvVars(u); err != nil {
			return fmt.Errorf("urls[%d]: %w", i, err)
		}
	}
	if p.Username, err = expandEnvVars(p.Username); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	if p.Password, err = expandEnvVars(p.Password); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	if p.AuthURL, err = expandEnvVars(p.AuthURL); err != nil {
		return fmt.Errorf("auth_url: %w", err)
	}

	if p.Kind == "session" {
		if p.AuthURL == "" {
			return errors.New("kind session requires auth_url")
		}
		if p.Username == "" {
			return errors.New("kind session requires username")
		}
	}
	return nil
}
