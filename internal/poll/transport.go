package poll

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when polling
// many backends
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Request describes a single outgoing poll request after shaping.
type Request struct {
	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// URL is the fully shaped target URL, scheme included.
	URL string

	// Header holds the request headers to send.
	Header http.Header

	// Username and Password carry basic-auth credentials. Basic auth is
	// applied only when Username is non-empty.
	Username string
	Password string
}

// Response is the outcome of a successfully completed request.
type Response struct {
	// StatusCode is the HTTP status code of the final response.
	StatusCode int

	// Body is the response body, limited to 1MB.
	Body []byte
}

// Transport issues a single poll request and resolves it exactly once:
// either a response or an error, never both.
//
// The Poller is written purely against this interface so tests can inject
// fakes; [NewHTTPTransport] provides the production implementation.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportConfig holds the process-wide transport parameters. They apply
// to every request regardless of project.
type TransportConfig struct {
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// IdleTimeout bounds inactivity per request, both while waiting for
	// response headers and between body reads.
	IdleTimeout time.Duration

	// MaxRedirects caps redirect hops before a request fails.
	MaxRedirects int
}

// DefaultTransportConfig returns the default process-wide transport
// parameters.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ConnectTimeout: 10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRedirects:   5,
	}
}

// HTTPTransport is the production [Transport] backed by net/http.
//
// Connect and inactivity timeouts and the redirect cap come from
// [TransportConfig]; connection pooling is tuned for polling many distinct
// hosts.
type HTTPTransport struct {
	client      *http.Client
	idleTimeout time.Duration
}

// NewHTTPTransport creates an [HTTPTransport] with the given configuration.
// Zero-valued fields fall back to [DefaultTransportConfig].
func NewHTTPTransport(cfg TransportConfig) *HTTPTransport {
	def := DefaultTransportConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}

	maxRedirects := cfg.MaxRedirects
	return &HTTPTransport{
		idleTimeout: cfg.IdleTimeout,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				ResponseHeaderTimeout: cfg.IdleTimeout,
				MaxIdleConns:          defaultMaxIdleConns,
				MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
				IdleConnTimeout:       defaultIdleConnTimeout,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Do issues the request and returns the response, or an error on any
// connection failure, timeout, or non-2xx status.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Username != "" {
		httpReq.SetBasicAuth(req.Username, req.Password)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The header timeout does not cover a body that drips slower than the
	// idle setting; cancel the request when reads go quiet.
	idle := time.AfterFunc(t.idleTimeout, cancel)
	reader := &idleResetReader{r: resp.Body, timer: idle, d: t.idleTimeout}
	body, err := io.ReadAll(io.LimitReader(reader, maxResponseBodySize))
	idle.Stop()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// idleResetReader resets the inactivity timer on every successful read,
// so the timeout measures quiet time rather than total body time.
type idleResetReader struct {
	r     io.Reader
	timer *time.Timer
	d     time.Duration
}

func (ir *idleResetReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.d)
	}
	return n, err
}

// Close releases idle connections held by the transport's connection pool.
// Safe to call multiple times; the transport remains usable afterward.
func (t *HTTPTransport) Close() {
	if t == nil || t.client == nil {
		return
	}
	if transport, ok := t.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// normalizeTarget shapes a raw target string into a fetchable URL.
//
// A target lacking a recognizable scheme is interpreted as implicit http.
// Targets that still fail to parse are reported with [ErrBadTarget] so the
// caller can defer the job without failing its workload.
func normalizeTarget(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("%w: empty target", ErrBadTarget)
	}
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadTarget, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrBadTarget, target)
	}
	return u.String(), nil
}
