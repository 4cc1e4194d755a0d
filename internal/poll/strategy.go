package poll

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors surfaced by the polling engine.
var (
	// ErrBadTarget marks a job target that cannot be resolved into a
	// request. Jobs failing with it are deferred, not failed.
	ErrBadTarget = errors.New("unresolvable job target")

	// ErrJobUnbuildable fails a workload whose job target kept failing
	// request construction past the retry cap.
	ErrJobUnbuildable = errors.New("job target failed construction repeatedly")

	// ErrWorkloadStalled fails a workload that exceeded the configured
	// maximum age without completing.
	ErrWorkloadStalled = errors.New("workload exceeded maximum age")
)

// Backend kinds selecting the polling strategy for a project.
const (
	// KindBasic polls CI backends that take credentials directly on each
	// request.
	KindBasic = "basic"

	// KindSession polls CI backends that require a session-token exchange
	// before each fetch.
	KindSession = "session"

	// KindTracker polls issue-tracking backends for validation. Request
	// shaping is identical to KindBasic; trackers run on the long cadence.
	KindTracker = "tracker"
)

// ProjectInfo is the poll-internal view of a tracked project.
//
// It is decoupled from the public buildwatch.Project type so this package
// has no dependency on the SDK surface; the root package converts.
type ProjectInfo struct {
	// Key is the opaque identifier of the project.
	Key string

	// Kind selects the Strategy variant (KindBasic, KindSession,
	// KindTracker).
	Kind string

	// URLs are the target URLs polled each cycle, one job per URL.
	URLs []string

	// Username and Password are the optional credentials. For KindBasic
	// they ride on every request as basic auth; for KindSession they feed
	// the authentication exchange.
	Username string
	Password string

	// AuthURL is the authentication endpoint for KindSession projects.
	AuthURL string

	// Accept is the optional accepted content type, merged into request
	// headers when non-empty.
	Accept string
}

// Strategy is the backend-specific polling logic: it enumerates the jobs
// that constitute one polling cycle for a project and issues the
// authenticated fetch for a single job.
//
// Fetch resolves exactly once: payload on success, error on any transport
// or authentication failure. Errors wrapping [ErrBadTarget] mean the job's
// request could not be constructed at all; the Poller defers such jobs
// instead of failing the workload.
type Strategy interface {
	BuildWorkload(p ProjectInfo) *Workload
	Fetch(ctx context.Context, p ProjectInfo, job Job) ([]byte, error)
}

// strategyFor returns the Strategy for a project's backend kind.
func strategyFor(kind string, transport Transport, auth Authenticator) (Strategy, error) {
	switch kind {
	case KindBasic, KindTracker:
		return &basicStrategy{transport: transport}, nil
	case KindSession:
		return &sessionStrategy{transport: transport, auth: auth}, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}

// buildTargetWorkload enumerates one job per target URL. Shared by all
// variants; job ids are stable across cycles so unfinished-set retries
// address the same job.
func buildTargetWorkload(p ProjectInfo) *Workload {
	w := NewWorkload(p.Key)
	for i, target := range p.URLs {
		// ids are index-derived and unique by construction
		_ = w.AddJob(Job{ID: fmt.Sprintf("target-%d", i+1), Target: target})
	}
	return w
}

// shapeHeader builds the common header set: the Accept header is merged in
// only when the project declares an accepted content type.
func shapeHeader(p ProjectInfo) http.Header {
	h := make(http.Header)
	if p.Accept != "" {
		h.Set("Accept", p.Accept)
	}
	return h
}

// basicStrategy polls backends that accept credentials on each request.
// When the project carries a non-empty username, every request goes out
// with basic auth; no separate authentication round-trip takes place.
type basicStrategy struct {
	transport Transport
}

func (s *basicStrategy) BuildWorkload(p ProjectInfo) *Workload {
	return buildTargetWorkload(p)
}

func (s *basicStrategy) Fetch(ctx context.Context, p ProjectInfo, job Job) ([]byte, error) {
	target, err := normalizeTarget(job.Target)
	if err != nil {
		return nil, err
	}

	req := &Request{URL: target, Header: shapeHeader(p)}
	if p.Username != "" {
		req.Username = p.Username
		req.Password = p.Password
	}

	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// sessionStrategy polls backends that require a session-token exchange.
// Each fetch composes two steps: authenticate against the project's auth
// endpoint, then issue the feed request with the token embedded as a
// bearer credential in a cookie-style header. An authentication failure is
// indistinguishable from a transport failure at the workload level.
type sessionStrategy struct {
	transport Transport
	auth      Authenticator
}

func (s *sessionStrategy) BuildWorkload(p ProjectInfo) *Workload {
	return buildTargetWorkload(p)
}

func (s *sessionStrategy) Fetch(ctx context.Context, p ProjectInfo, job Job) ([]byte, error) {
	target, err := normalizeTarget(job.Target)
	if err != nil {
		return nil, err
	}

	token, err := s.auth.Authenticate(ctx, p.AuthURL, p.Username, p.Password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	header := shapeHeader(p)
	header.Set("Cookie", "Bearer "+token)

	resp, err := s.transport.Do(ctx, &Request{URL: target, Header: header})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
