package buildwatch

import (
	"testing"
)

func TestNewProject_Valid(t *testing.T) {
	p, err := NewProject("website", Basic,
		[]string{"ci.example.com/feed", "ci.example.com/status"},
		WithCredentials("me", "pw"),
		WithAcceptType("application/json"),
	)
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}

	if p.Key() != "website" || p.Kind() != Basic {
		t.Errorf("identity = (%q, %q)", p.Key(), p.Kind())
	}
	if p.Username() != "me" {
		t.Errorf("username = %q, want me", p.Username())
	}
	if p.AcceptType() != "application/json" {
		t.Errorf("accept = %q", p.AcceptType())
	}
	if urls := p.URLs(); len(urls) != 2 || urls[0] != "ci.example.com/feed" {
		t.Errorf("URLs = %v", urls)
	}
}

func TestNewProject_URLsCopied(t *testing.T) {
	urls := []string{"ci.example.com/feed"}
	p, err := NewProject("site", Basic, urls)
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}

	urls[0] = "mutated.example.com"
	if p.URLs()[0] != "ci.example.com/feed" {
		t.Error("project shares the caller's URL slice")
	}

	got := p.URLs()
	got[0] = "mutated.example.com"
	if p.URLs()[0] != "ci.example.com/feed" {
		t.Error("URLs() exposes internal state")
	}
}

func TestNewProject_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		kind Kind
		urls []string
		opts []ProjectOption
	}{
		{name: "empty key", key: "", kind: Basic, urls: []string{"x.example.com"}},
		{name: "unknown kind", key: "site", kind: Kind("cvs"), urls: []string{"x.example.com"}},
		{name: "no urls", key: "site", kind: Basic, urls: nil},
		{name: "session without auth url", key: "s", kind: Session, urls: []string{"x.example.com"},
			opts: []ProjectOption{WithCredentials("me", "pw")}},
		{name: "session without credentials", key: "s", kind: Session, urls: []string{"x.example.com"},
			opts: []ProjectOption{WithAuthURL("x.example.com/auth")}},
		{name: "empty auth url option", key: "s", kind: Session, urls: []string{"x.example.com"},
			opts: []ProjectOption{WithAuthURL("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProject(tt.key, tt.kind, tt.urls, tt.opts...); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

func TestNewProject_SessionValid(t *testing.T) {
	p, err := NewProject("pipelines", Session,
		[]string{"ci.example.com/pipeline/1"},
		WithCredentials("bot", "secret"),
		WithAuthURL("ci.example.com/auth"),
	)
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	if p.AuthURL() != "ci.example.com/auth" {
		t.Errorf("auth URL = %q", p.AuthURL())
	}
}
