package buildwatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/buildwatch/buildwatch/internal/poll"
	"github.com/buildwatch/buildwatch/store"
)

// wConfig holds mutable state during Watcher construction.
type wConfig struct {
	projects         []Project
	pollInterval     time.Duration
	trackerInterval  time.Duration
	workloadMaxAge   time.Duration
	transport        poll.TransportConfig
	databasePath     string
	storer           store.Storer
	handlers         []Handler
	logger           *slog.Logger
	outcomeCallbacks []func(Outcome)
}

// Option configures a [Watcher] during construction.
//
// Built-in options: [WithProject], [WithProjects], [WithPollInterval],
// [WithTrackerInterval], [WithWorkloadMaxAge], [WithTransportConfig],
// [WithConnectTimeout], [WithIdleTimeout], [WithMaxRedirects],
// [WithDatabase], [WithStore], [WithHandler], [WithLogger],
// [WithOutcomeCallback].
type Option func(*wConfig) error

// WithProject adds a single tracked [Project]. Can be called multiple
// times; at least one project must be configured for [New] to succeed.
func WithProject(p Project) Option {
	return func(cfg *wConfig) error {
		cfg.projects = append(cfg.projects, p)
		return nil
	}
}

// WithProjects adds multiple tracked projects at once. Equivalent to
// calling [WithProject] for each.
func WithProjects(projects ...Project) Option {
	return func(cfg *wConfig) error {
		cfg.projects = append(cfg.projects, projects...)
		return nil
	}
}

// WithPollInterval sets the cadence of CI project polling.
// Defaults to 30 seconds.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *wConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithTrackerInterval sets the cadence of issue-tracker polling.
// Defaults to 5 minutes.
func WithTrackerInterval(d time.Duration) Option {
	return func(cfg *wConfig) error {
		if d <= 0 {
			return errors.New("tracker interval must be positive")
		}
		cfg.trackerInterval = d
		return nil
	}
}

// WithWorkloadMaxAge sets the watchdog age after which an uncompleted
// workload is failed and rebuilt. Zero disables the watchdog.
// Defaults to 10 minutes.
func WithWorkloadMaxAge(d time.Duration) Option {
	return func(cfg *wConfig) error {
		if d < 0 {
			return errors.New("workload max age cannot be negative")
		}
		cfg.workloadMaxAge = d
		return nil
	}
}

// WithTransportConfig sets every process-wide transport parameter at
// once. Zero-valued fields keep their defaults. Equivalent to calling
// [WithConnectTimeout], [WithIdleTimeout], and [WithMaxRedirects]
// individually.
func WithTransportConfig(tc TransportConfig) Option {
	return func(cfg *wConfig) error {
		if tc.ConnectTimeout < 0 {
			return errors.New("connect timeout cannot be negative")
		}
		if tc.IdleTimeout < 0 {
			return errors.New("idle timeout cannot be negative")
		}
		if tc.MaxRedirects < 0 {
			return errors.New("max redirects cannot be negative")
		}
		if tc.ConnectTimeout > 0 {
			cfg.transport.ConnectTimeout = tc.ConnectTimeout
		}
		if tc.IdleTimeout > 0 {
			cfg.transport.IdleTimeout = tc.IdleTimeout
		}
		if tc.MaxRedirects > 0 {
			cfg.transport.MaxRedirects = tc.MaxRedirects
		}
		return nil
	}
}

// WithConnectTimeout sets the process-wide connection-establishment
// timeout for poll requests.
func WithConnectTimeout(d time.Duration) Option {
	return func(cfg *wConfig) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		cfg.transport.ConnectTimeout = d
		return nil
	}
}

// WithIdleTimeout sets the process-wide inactivity timeout for poll
// requests.
func WithIdleTimeout(d time.Duration) Option {
	return func(cfg *wConfig) error {
		if d <= 0 {
			return errors.New("idle timeout must be positive")
		}
		cfg.transport.IdleTimeout = d
		return nil
	}
}

// WithMaxRedirects caps redirect hops for poll requests.
func WithMaxRedirects(n int) Option {
	return func(cfg *wConfig) error {
		if n < 1 {
			return errors.New("max redirects must be at least 1")
		}
		cfg.transport.MaxRedirects = n
		return nil
	}
}

// WithDatabase stores projects and polling outcomes in a sqlite database
// at the given path instead of the default in-memory store.
// Mutually exclusive with [WithStore].
func WithDatabase(path string) Option {
	return func(cfg *wConfig) error {
		if path == "" {
			return errors.New("database path cannot be empty")
		}
		if cfg.storer != nil {
			return errors.New("database path and store are mutually exclusive")
		}
		cfg.databasePath = path
		return nil
	}
}

// WithStore injects a caller-owned [store.Storer] instead of the built-in
// memory or sqlite stores. The watcher seeds it with the configured
// projects and records outcomes through it, but does not close it; the
// caller retains ownership. Mutually exclusive with [WithDatabase].
func WithStore(s store.Storer) Option {
	return func(cfg *wConfig) error {
		if s == nil {
			return errors.New("store cannot be nil")
		}
		if cfg.databasePath != "" {
			return errors.New("database path and store are mutually exclusive")
		}
		cfg.storer = s
		return nil
	}
}

// WithHandler registers a [Handler] notified of every workload lifecycle
// event: creation, completion, failure. Can be called multiple times.
//
// Handlers run synchronously on the polling engine's notification path
// and must not block. Panics in handlers are recovered and logged.
// Outcomes are recorded in the store before handlers fire.
func WithHandler(h Handler) Option {
	return func(cfg *wConfig) error {
		if h == nil {
			return errors.New("handler cannot be nil")
		}
		cfg.handlers = append(cfg.handlers, h)
		return nil
	}
}

// WithLogger sets the logger used by the watcher and the polling engine.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *wConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOutcomeCallback registers a callback invoked once per workload
// outcome, after the outcome has been recorded in the store.
//
// Callbacks run on the polling engine's completion path and must not
// block. Panics in callbacks are recovered and logged.
func WithOutcomeCallback(cb func(Outcome)) Option {
	return func(cfg *wConfig) error {
		if cb == nil {
			return errors.New("outcome callback cannot be nil")
		}
		cfg.outcomeCallbacks = append(cfg.outcomeCallbacks, cb)
		return nil
	}
}
