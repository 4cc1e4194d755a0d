package config

import (
	"fmt"

	"github.com/buildwatch/buildwatch"
)

// BuildProjects converts a validated [Config] into SDK projects, trackers
// included.
func BuildProjects(cfg *Config) ([]buildwatch.Project, error) {
	projects := make([]buildwatch.Project, 0, len(cfg.Projects)+len(cfg.Trackers))

	for _, pc := range append(append([]ProjectConfig{}, cfg.Projects...), cfg.Trackers...) {
		p, err := buildProject(pc)
		if err != nil {
			return nil, fmt.Errorf("project %q: %w", pc.Key, err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func buildProject(pc ProjectConfig) (buildwatch.Project, error) {
	var opts []buildwatch.ProjectOption
	if pc.Username != "" {
		opts = append(opts, buildwatch.WithCredentials(pc.Username, pc.Password))
	}
	if pc.AuthURL != "" {
		opts = append(opts, buildwatch.WithAuthURL(pc.AuthURL))
	}
	if pc.Accept != "" {
		opts = append(opts, buildwatch.WithAcceptType(pc.Accept))
	}
	return buildwatch.NewProject(pc.Key, buildwatch.Kind(pc.Kind), pc.URLs, opts...)
}

// BuildOptions converts a validated [Config] into watcher options,
// projects included.
func BuildOptions(cfg *Config) ([]buildwatch.Option, error) {
	projects, err := BuildProjects(cfg)
	if err != nil {
		return nil, err
	}

	opts := []buildwatch.Option{
		buildwatch.WithProjects(projects...),
		buildwatch.WithPollInterval(cfg.PollInterval.Duration()),
		buildwatch.WithTrackerInterval(cfg.TrackerInterval.Duration()),
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, buildwatch.WithConnectTimeout(cfg.ConnectTimeout.Duration()))
	}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, buildwatch.WithIdleTimeout(cfg.IdleTimeout.Duration()))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, buildwatch.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.WorkloadMaxAge > 0 {
		opts = append(opts, buildwatch.WithWorkloadMaxAge(cfg.WorkloadMaxAge.Duration()))
	}
	if cfg.Database != "" {
		opts = append(opts, buildwatch.WithDatabase(cfg.Database))
	}
	return opts, nil
}
