package buildwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildwatch/buildwatch/internal/poll"
	"github.com/buildwatch/buildwatch/store"
	"github.com/buildwatch/buildwatch/store/sqlite"
)

// TransportConfig holds the process-wide HTTP transport parameters
// applied to every poll request regardless of project. Zero-valued
// fields keep their defaults (10s connect, 30s idle, 5 redirects).
// Set with [WithTransportConfig].
type TransportConfig struct {
	// ConnectTimeout bounds connection establishment per request.
	ConnectTimeout time.Duration

	// IdleTimeout bounds inactivity per request, both while waiting for
	// response headers and between body reads.
	IdleTimeout time.Duration

	// MaxRedirects caps redirect hops before a request fails.
	MaxRedirects int
}

// WorkloadInfo is a read-only snapshot of one polling cycle, handed to
// handlers registered with [WithHandler].
type WorkloadInfo struct {
	// ProjectKey identifies the polled project.
	ProjectKey string

	// WorkloadID identifies the polling cycle.
	WorkloadID string

	// Jobs is the number of requests the cycle carries.
	Jobs int

	// CreatedAt is when the cycle was created.
	CreatedAt time.Time
}

// Handler observes workload lifecycle events: one creation notification
// when a polling cycle begins, then exactly one of completion or failure.
// Register with [WithHandler].
//
// Methods run synchronously on the engine's notification path and must
// not block.
type Handler interface {
	WorkloadCreated(info WorkloadInfo)
	WorkloadComplete(info WorkloadInfo, results map[string][]byte)
	WorkloadFailed(info WorkloadInfo, cause error)
}

const (
	defaultPollInterval    = 30 * time.Second
	defaultTrackerInterval = 5 * time.Minute
	defaultWorkloadMaxAge  = 10 * time.Minute
)

// Outcome is the final state of one polling cycle for one project,
// delivered to callbacks registered with [WithOutcomeCallback].
type Outcome struct {
	// ProjectKey identifies the polled project.
	ProjectKey string

	// WorkloadID identifies the polling cycle.
	WorkloadID string

	// Completed reports whether every job in the cycle produced a result.
	Completed bool

	// Results maps job ids to raw response payloads. Populated only for
	// completed cycles; failed cycles drop their partial results.
	Results map[string][]byte

	// Err is the failure cause for failed cycles, nil otherwise.
	Err error

	// FinishedAt is when the outcome was determined.
	FinishedAt time.Time
}

// Watcher is the main orchestrator: it polls the tracked projects' CI
// backends on a short cadence, the tracker backends on a long cadence, and
// records every workload outcome through the configured store.
//
// Create with [New] and run with [Watcher.Start] (blocking, until context
// cancellation) or [Watcher.RunOnce] (exactly one tick of each cadence,
// for operational verification).
type Watcher struct {
	projects         []Project
	pollInterval     time.Duration
	trackerInterval  time.Duration
	workloadMaxAge   time.Duration
	transportCfg     poll.TransportConfig
	databasePath     string
	storer           store.Storer
	handlers         []Handler
	logger           *slog.Logger
	outcomeCallbacks []func(Outcome)
}

// New creates a [Watcher] from the given options.
//
// At least one project must be configured via [WithProject] or
// [WithProjects], and project keys must be unique. Other options have
// defaults: 30s poll interval, 5m tracker interval, 10m workload max age,
// in-memory store.
func New(opts ...Option) (*Watcher, error) {
	cfg := &wConfig{
		pollInterval:    defaultPollInterval,
		trackerInterval: defaultTrackerInterval,
		workloadMaxAge:  defaultWorkloadMaxAge,
		transport:       poll.DefaultTransportConfig(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.projects) == 0 {
		return nil, errors.New("at least one project is required")
	}
	seen := make(map[string]bool, len(cfg.projects))
	for _, p := range cfg.projects {
		if seen[p.key] {
			return nil, fmt.Errorf("duplicate project key: %q", p.key)
		}
		seen[p.key] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		projects:         cfg.projects,
		pollInterval:     cfg.pollInterval,
		trackerInterval:  cfg.trackerInterval,
		workloadMaxAge:   cfg.workloadMaxAge,
		transportCfg:     cfg.transport,
		databasePath:     cfg.databasePath,
		storer:           cfg.storer,
		handlers:         cfg.handlers,
		logger:           logger,
		outcomeCallbacks: cfg.outcomeCallbacks,
	}, nil
}

// Projects returns a copy of the configured projects.
func (w *Watcher) Projects() []Project {
	cp := make([]Project, len(w.projects))
	copy(cp, w.projects)
	return cp
}

// PollInterval returns the configured CI polling cadence.
func (w *Watcher) PollInterval() time.Duration { return w.pollInterval }

// TrackerInterval returns the configured tracker polling cadence.
func (w *Watcher) TrackerInterval() time.Duration { return w.trackerInterval }

// Start begins polling and blocks until the context is cancelled.
//
// On cancellation the poller is stopped, in-flight requests are drained,
// and the store and transport are closed. Returns nil on graceful
// shutdown; an error only if the store could not be opened or seeded.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return nil
	}

	w.logger.Info("buildwatch starting",
		"project_count", len(w.projects),
		"poll_interval", w.pollInterval.String(),
		"tracker_interval", w.trackerInterval.String(),
	)

	rt, err := w.assemble(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.poller.Start(ctx)
	<-ctx.Done()
	rt.poller.Stop()

	w.logger.Info("buildwatch stopped")
	return nil
}

// RunOnce executes exactly one CI tick and one tracker tick, waits for all
// issued requests to resolve, and returns. Useful for operational
// verification and one-shot CLI runs.
func (w *Watcher) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := w.assemble(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.poller.RunOnce(ctx)
}

// runtime bundles the collaborators a single Start/RunOnce invocation
// wires together.
type runtime struct {
	storer    store.Storer
	ownStore  bool
	transport *poll.HTTPTransport
	poller    *poll.Poller
	handler   *recordingHandler
}

func (rt *runtime) close() {
	rt.transport.Close()
	if !rt.ownStore {
		return
	}
	if err := rt.storer.Close(); err != nil {
		slog.Default().Warn("failed to close store", "error", err)
	}
}

// assemble opens the store, seeds it with the configured projects, and
// wires the polling engine.
func (w *Watcher) assemble(ctx context.Context) (*runtime, error) {
	storer := w.storer
	ownStore := false
	if storer == nil {
		ownStore = true
		if w.databasePath != "" {
			s, err := sqlite.New(ctx, w.databasePath)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}
			storer = s
		} else {
			storer = store.NewMemoryStore()
		}
	}

	for _, p := range w.projects {
		if err := storer.UpsertProject(ctx, toStoreProject(p)); err != nil {
			if ownStore {
				storer.Close()
			}
			return nil, fmt.Errorf("failed to seed project %q: %w", p.key, err)
		}
	}

	transport := poll.NewHTTPTransport(w.transportCfg)
	// Outcomes resolving during the post-cancel drain must still reach the
	// store, so recording is detached from Start's cancellation.
	handler := &recordingHandler{
		ctx:       context.WithoutCancel(ctx),
		storer:    storer,
		handlers:  w.handlers,
		callbacks: w.outcomeCallbacks,
		logger:    w.logger,
	}
	poller := poll.New(
		&storeSource{storer: storer},
		transport,
		poll.NewHTTPAuthenticator(),
		handler,
		poll.Config{
			PollInterval:    w.pollInterval,
			TrackerInterval: w.trackerInterval,
			WorkloadMaxAge:  w.workloadMaxAge,
		},
		w.logger,
	)

	return &runtime{
		storer:    storer,
		ownStore:  ownStore,
		transport: transport,
		poller:    poller,
		handler:   handler,
	}, nil
}

// storeSource adapts a store.Storer to the engine's Source interface.
type storeSource struct {
	storer store.Storer
}

func (s *storeSource) DueProjects(ctx context.Context) ([]poll.ProjectInfo, error) {
	projects, err := s.storer.DueProjects(ctx)
	if err != nil {
		return nil, err
	}
	return toProjectInfos(projects), nil
}

func (s *storeSource) DueTrackers(ctx context.Context) ([]poll.ProjectInfo, error) {
	trackers, err := s.storer.DueTrackers(ctx)
	if err != nil {
		return nil, err
	}
	return toProjectInfos(trackers), nil
}

// recordingHandler bridges workload notifications into the store and the
// registered outcome callbacks. Recording happens before callbacks fire,
// so callbacks always observe persisted state.
type recordingHandler struct {
	ctx       context.Context
	storer    store.Storer
	handlers  []Handler
	callbacks []func(Outcome)
	logger    *slog.Logger
}

func (h *recordingHandler) WorkloadCreated(w *poll.Workload) {
	h.logger.Debug("workload created",
		"project", w.ProjectKey(), "workload", w.ID(), "jobs", w.JobCount())

	info := toWorkloadInfo(w)
	for _, handler := range h.handlers {
		invokeHandlerSafe(func() { handler.WorkloadCreated(info) }, info.ProjectKey, h.logger)
	}
}

func (h *recordingHandler) WorkloadComplete(w *poll.Workload) {
	if err := h.storer.RecordSuccess(h.ctx, w.ProjectKey(), w.JobCount()); err != nil {
		h.logger.Error("failed to record success",
			"project", w.ProjectKey(), "error", err)
	}
	h.logger.Info("workload complete",
		"project", w.ProjectKey(), "workload", w.ID(), "jobs", w.JobCount())

	info := toWorkloadInfo(w)
	results := w.Results()
	for _, handler := range h.handlers {
		invokeHandlerSafe(func() { handler.WorkloadComplete(info, results) }, info.ProjectKey, h.logger)
	}

	h.deliver(Outcome{
		ProjectKey: info.ProjectKey,
		WorkloadID: info.WorkloadID,
		Completed:  true,
		Results:    results,
		FinishedAt: time.Now(),
	})
}

func (h *recordingHandler) WorkloadFailed(w *poll.Workload, cause error) {
	if err := h.storer.RecordFailure(h.ctx, w.ProjectKey(), w.JobCount(), cause.Error()); err != nil {
		h.logger.Error("failed to record failure",
			"project", w.ProjectKey(), "error", err)
	}
	h.logger.Warn("workload failed",
		"project", w.ProjectKey(), "workload", w.ID(), "error", cause)

	info := toWorkloadInfo(w)
	for _, handler := range h.handlers {
		invokeHandlerSafe(func() { handler.WorkloadFailed(info, cause) }, info.ProjectKey, h.logger)
	}

	h.deliver(Outcome{
		ProjectKey: info.ProjectKey,
		WorkloadID: info.WorkloadID,
		Err:        cause,
		FinishedAt: time.Now(),
	})
}

func (h *recordingHandler) deliver(o Outcome) {
	for _, cb := range h.callbacks {
		invokeCallbackSafe(cb, o, h.logger)
	}
}

// invokeHandlerSafe calls a handler notification with panic recovery.
// Panics are logged but do not propagate.
func invokeHandlerSafe(fn func(), projectKey string, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workload handler panicked",
				"panic", r,
				"project", projectKey,
			)
		}
	}()
	fn()
}

func toWorkloadInfo(w *poll.Workload) WorkloadInfo {
	return WorkloadInfo{
		ProjectKey: w.ProjectKey(),
		WorkloadID: w.ID(),
		Jobs:       w.JobCount(),
		CreatedAt:  w.CreatedAt(),
	}
}

// invokeCallbackSafe calls an outcome callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Outcome), o Outcome, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("outcome callback panicked",
				"panic", r,
				"project", o.ProjectKey,
			)
		}
	}()
	cb(o)
}

func toStoreProject(p Project) store.Project {
	return store.Project{
		Key:      p.key,
		Kind:     string(p.kind),
		URLs:     p.URLs(),
		Username: p.username,
		Password: p.password,
		AuthURL:  p.authURL,
		Accept:   p.accept,
	}
}

func toProjectInfos(projects []store.Project) []poll.ProjectInfo {
	infos := make([]poll.ProjectInfo, len(projects))
	for i, p := range projects {
		infos[i] = poll.ProjectInfo{
			Key:      p.Key,
			Kind:     p.Kind,
			URLs:     append([]string(nil), p.URLs...),
			Username: p.Username,
			Password: p.Password,
			AuthURL:  p.AuthURL,
			Accept:   p.Accept,
		}
	}
	return infos
}
