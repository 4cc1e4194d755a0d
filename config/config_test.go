package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
poll_interval: 15s
tracker_interval: 2m
connect_timeout: 5s
idle_timeout: 20s
max_redirects: 3
database: /tmp/buildwatch.db

projects:
  - key: website
    kind: basic
    urls:
      - ci.example.com/feed
      - ci.example.com/status
    username: me
    password: pw
    accept: application/json
  - key: pipelines
    kind: session
    urls: [ci.example.com/pipeline/1]
    username: bot
    password: secret
    auth_url: ci.example.com/auth

trackers:
  - key: issues
    urls: [tracker.example.com/validate]
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.PollInterval.Duration() != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval.Duration())
	}
	if cfg.TrackerInterval.Duration() != 2*time.Minute {
		t.Errorf("TrackerInterval = %v, want 2m", cfg.TrackerInterval.Duration())
	}
	if len(cfg.Projects) != 2 || len(cfg.Trackers) != 1 {
		t.Fatalf("projects/trackers = %d/%d, want 2/1", len(cfg.Projects), len(cfg.Trackers))
	}
	if cfg.Projects[0].Kind != "basic" || cfg.Projects[1].Kind != "session" {
		t.Errorf("unexpected kinds: %q, %q", cfg.Projects[0].Kind, cfg.Projects[1].Kind)
	}
	if cfg.Trackers[0].Kind != "tracker" {
		t.Errorf("tracker kind = %q, want tracker (implicit)", cfg.Trackers[0].Kind)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
projects:
  - key: site
    urls: [ci.example.com/feed]
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.PollInterval.Duration() != 30*time.Second {
		t.Errorf("default poll_interval = %v, want 30s", cfg.PollInterval.Duration())
	}
	if cfg.TrackerInterval.Duration() != 5*time.Minute {
		t.Errorf("default tracker_interval = %v, want 5m", cfg.TrackerInterval.Duration())
	}
	if cfg.Projects[0].Kind != "basic" {
		t.Errorf("default kind = %q, want basic", cfg.Projects[0].Kind)
	}
}

func TestParse_EnvSubstitution(t *testing.T) {
	t.Setenv("BW_TEST_USER", "envuser")
	os.Unsetenv("BW_TEST_MISSING")

	cfg, err := Parse([]byte(`
projects:
  - key: site
    urls: ["${BW_TEST_HOST:-ci.example.com}/feed"]
    username: ${BW_TEST_USER}
    password: ${BW_TEST_PASS:-}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	p := cfg.Projects[0]
	if p.URLs[0] != "ci.example.com/feed" {
		t.Errorf("default substitution failed: %q", p.URLs[0])
	}
	if p.Username != "envuser" {
		t.Errorf("username = %q, want envuser", p.Username)
	}
	if p.Password != "" {
		t.Errorf("empty default substitution failed: %q", p.Password)
	}

	// unset variable without a default is an error
	_, err = Parse([]byte(`
projects:
  - key: site
    urls: [ci.example.com]
    username: ${BW_TEST_MISSING}
`))
	if err == nil || !strings.Contains(err.Error(), "BW_TEST_MISSING") {
		t.Errorf("expected unset-variable error, got %v", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty", yaml: ``},
		{name: "missing key", yaml: "projects:\n  - urls: [ci.example.com]"},
		{name: "missing urls", yaml: "projects:\n  - key: site"},
		{name: "unknown kind", yaml: "projects:\n  - key: site\n    kind: cvs\n    urls: [x.example.com]"},
		{name: "session without auth_url", yaml: "projects:\n  - key: s\n    kind: session\n    urls: [x.example.com]\n    username: me"},
		{name: "session without username", yaml: "projects:\n  - key: s\n    kind: session\n    urls: [x.example.com]\n    auth_url: x.example.com/auth"},
		{name: "tracker with kind", yaml: "trackers:\n  - key: i\n    kind: basic\n    urls: [x.example.com]"},
		{name: "sub-second interval", yaml: "poll_interval: 100ms\nprojects:\n  - key: site\n    urls: [x.example.com]"},
		{name: "bad duration", yaml: "poll_interval: soon\nprojects:\n  - key: site\n    urls: [x.example.com]"},
		{name: "not yaml", yaml: `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildwatch.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Projects) != 2 {
		t.Errorf("projects = %d, want 2", len(cfg.Projects))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
