package buildwatch

import (
	"errors"
	"fmt"
)

// Kind discriminates the CI backend type of a [Project] and selects the
// polling strategy applied to it.
type Kind string

const (
	// Basic marks backends polled with credentials carried directly on
	// each request (HTTP basic auth when a username is present).
	Basic Kind = "basic"

	// Session marks backends that require a session-token exchange before
	// each fetch.
	Session Kind = "session"

	// Tracker marks issue-tracking backends polled for validation on the
	// long cadence.
	Tracker Kind = "tracker"
)

func (k Kind) valid() bool {
	switch k {
	case Basic, Session, Tracker:
		return true
	}
	return false
}

// Project represents one tracked project/backend configuration, polled
// once per cycle.
//
// Project is immutable after creation via [NewProject]. The polling engine
// treats it as read-only input for one polling pass; nothing in buildwatch
// ever mutates it.
type Project struct {
	key      string
	kind     Kind
	urls     []string
	username string
	password string
	authURL  string
	accept   string
}

// ProjectOption configures a [Project] during construction.
//
// Built-in options: [WithCredentials], [WithAuthURL], [WithAcceptType].
type ProjectOption func(*Project) error

// WithCredentials sets the username/password pair for the project.
//
// For [Basic] and [Tracker] projects a non-empty username causes every
// request to carry HTTP basic auth; for [Session] projects the credentials
// feed the authentication exchange.
func WithCredentials(username, password string) ProjectOption {
	return func(p *Project) error {
		p.username = username
		p.password = password
		return nil
	}
}

// WithAuthURL sets the authentication endpoint for a [Session] project.
func WithAuthURL(authURL string) ProjectOption {
	return func(p *Project) error {
		if authURL == "" {
			return errors.New("auth URL cannot be empty")
		}
		p.authURL = authURL
		return nil
	}
}

// WithAcceptType declares the accepted content type. When set, every
// request to the project's targets carries a matching Accept header in
// addition to any credential header.
func WithAcceptType(accept string) ProjectOption {
	return func(p *Project) error {
		p.accept = accept
		return nil
	}
}

// NewProject creates a [Project] with the given key, backend kind, target
// URLs, and options.
//
// The key is an opaque identifier, unique among tracked projects. At least
// one target URL is required; targets without a URI scheme are polled as
// implicit http.
//
// [Session] projects must also configure [WithAuthURL] and
// [WithCredentials].
//
// Example:
//
//	p, err := buildwatch.NewProject("website", buildwatch.Basic,
//	    []string{"ci.example.com/feed", "ci.example.com/status"},
//	    buildwatch.WithCredentials("me", "pw"),
//	    buildwatch.WithAcceptType("application/json"),
//	)
func NewProject(key string, kind Kind, urls []string, opts ...ProjectOption) (Project, error) {
	if key == "" {
		return Project{}, errors.New("project key cannot be empty")
	}
	if !kind.valid() {
		return Project{}, fmt.Errorf("unknown backend kind %q", kind)
	}
	if len(urls) == 0 {
		return Project{}, errors.New("at least one target URL is required")
	}

	p := Project{
		key:  key,
		kind: kind,
		urls: append([]string(nil), urls...),
	}
	for _, opt := range opts {
		if err := opt(&p); err != nil {
			return Project{}, err
		}
	}

	if kind == Session {
		if p.authURL == "" {
			return Project{}, errors.New("session projects require an auth URL")
		}
		if p.username == "" {
			return Project{}, errors.New("session projects require credentials")
		}
	}

	return p, nil
}

// Key returns the project's opaque identifier.
func (p Project) Key() string { return p.key }

// Kind returns the project's backend kind.
func (p Project) Kind() Kind { return p.kind }

// URLs returns a copy of the project's target URLs.
func (p Project) URLs() []string {
	return append([]string(nil), p.urls...)
}

// Username returns the configured username, empty when no credentials are
// set.
func (p Project) Username() string { return p.username }

// AuthURL returns the authentication endpoint for session projects.
func (p Project) AuthURL() string { return p.authURL }

// AcceptType returns the declared accepted content type, empty when none
// is set.
func (p Project) AcceptType() string { return p.accept }
