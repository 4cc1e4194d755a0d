package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxBuildSkips caps how many times a job's request construction may fail
// before the workload is failed with ErrJobUnbuildable. Without the cap a
// permanently malformed target would be retried every cycle forever.
const maxBuildSkips = 3

// Handler is the notification sink for workload lifecycle transitions.
//
// Notifications are synchronous and serialized: the Poller invokes them one
// at a time, creation strictly before any request is issued, completion and
// failure strictly before the workload leaves the active set. Handlers must
// not block and are notified at most once of a workload's final state.
type Handler interface {
	WorkloadCreated(w *Workload)
	WorkloadComplete(w *Workload)
	WorkloadFailed(w *Workload, err error)
}

// Source enumerates the projects currently due for polling. It fronts the
// entity store; the engine treats what it returns as read-only input for
// one polling pass.
type Source interface {
	// DueProjects returns the CI projects due on the short cadence.
	DueProjects(ctx context.Context) ([]ProjectInfo, error)

	// DueTrackers returns the tracker projects due on the long cadence.
	DueTrackers(ctx context.Context) ([]ProjectInfo, error)
}

// Config carries the process-wide poller settings.
type Config struct {
	// PollInterval is the cadence of CI project polling.
	PollInterval time.Duration

	// TrackerInterval is the cadence of issue-tracker polling.
	TrackerInterval time.Duration

	// WorkloadMaxAge fails workloads that have not completed within this
	// duration. Zero disables the watchdog.
	WorkloadMaxAge time.Duration
}

// Poller is the scheduler at the center of the engine.
//
// On each tick it enumerates the projects due for polling and, per project,
// gets or creates that project's workload, asks the strategy for the
// unfinished jobs, and issues one non-blocking request per job. Completions
// may arrive in any order; the poller stores each result, checks the
// completion predicate strictly afterward, and notifies the handler exactly
// once per workload outcome. Any single job failure fails the whole
// workload for that cycle: partial results are dropped and the workload is
// rebuilt from scratch on the next tick.
//
// The active workload set is the only shared mutable state. All mutations
// (get-or-create, result storage, removal) and all handler notifications
// happen under one mutex, so get-or-create is atomic and at most one
// workload exists per project at any time.
//
// Start and Stop are safe for concurrent use and idempotent.
type Poller struct {
	source    Source
	transport Transport
	auth      Authenticator
	handler   Handler
	logger    *slog.Logger
	cfg       Config

	mu      sync.Mutex
	active  map[string]*Workload
	started bool
	stopped bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup // ticker loop
	inflight sync.WaitGroup // issued requests
}

// New creates a [Poller]. The transport and handler are required; auth may
// be nil when no session-kind projects exist. A nil logger falls back to
// slog.Default().
func New(source Source, transport Transport, auth Authenticator, handler Handler, cfg Config, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.TrackerInterval <= 0 {
		cfg.TrackerInterval = 5 * time.Minute
	}
	return &Poller{
		source:    source,
		transport: transport,
		auth:      auth,
		handler:   handler,
		logger:    logger,
		cfg:       cfg,
		active:    make(map[string]*Workload),
	}
}

// Start begins the two periodic polling loops in a background goroutine:
// the short-period CI tick and the long-period tracker tick. Both fire
// immediately on start.
//
// Start is non-blocking and idempotent; calling it after Stop is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	pollCtx := p.ctx // capture under lock to avoid race
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		p.pollProjects(pollCtx)
		p.pollTrackers(pollCtx)

		projectTicker := time.NewTicker(p.cfg.PollInterval)
		defer projectTicker.Stop()
		trackerTicker := time.NewTicker(p.cfg.TrackerInterval)
		defer trackerTicker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-projectTicker.C:
				p.pollProjects(pollCtx)
			case <-trackerTicker.C:
				p.pollTrackers(pollCtx)
			}
		}
	}()
}

// Stop halts the poller and waits for the polling loop and all in-flight
// requests to wind down. Idempotent; safe to call before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		if p.cancel != nil {
			p.cancel()
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.inflight.Wait()
}

// RunOnce executes exactly one CI tick and one tracker tick, then waits for
// every request issued by those ticks to resolve. Returns early with the
// context's error if ctx is cancelled first.
func (p *Poller) RunOnce(ctx context.Context) error {
	p.pollProjects(ctx)
	p.pollTrackers(ctx)

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveWorkloads returns the number of workloads currently in flight.
func (p *Poller) ActiveWorkloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *Poller) pollProjects(ctx context.Context) {
	projects, err := p.source.DueProjects(ctx)
	if err != nil {
		p.logger.Error("failed to enumerate due projects", "error", err)
		return
	}
	for _, project := range projects {
		p.pollProject(ctx, project)
	}
}

func (p *Poller) pollTrackers(ctx context.Context) {
	trackers, err := p.source.DueTrackers(ctx)
	if err != nil {
		p.logger.Error("failed to enumerate due trackers", "error", err)
		return
	}
	for _, tracker := range trackers {
		p.pollProject(ctx, tracker)
	}
}

// pollProject runs one polling pass for a single project: get-or-create
// the workload, then issue a request for each unfinished job. Issuance is
// non-blocking; each request resolves later on its own goroutine.
func (p *Poller) pollProject(ctx context.Context, project ProjectInfo) {
	strategy, err := strategyFor(project.Kind, p.transport, p.auth)
	if err != nil {
		p.logger.Error("skipping project", "project", project.Key, "error", err)
		return
	}

	w, jobs := p.getOrCreate(project, strategy)
	if w == nil {
		return
	}

	for _, job := range jobs {
		p.issue(ctx, project, strategy, w, job)
	}
}

// getOrCreate returns the project's active workload and its unfinished
// jobs, creating and announcing the workload first if none exists. Called
// twice for the same project before removal, it returns the same workload
// with no second creation notification.
//
// A nil workload means the pass should be skipped: either the strategy
// produced no jobs, or the existing workload was stale and has been failed.
func (p *Poller) getOrCreate(project ProjectInfo, strategy Strategy) (*Workload, []Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.active[project.Key]
	if !ok {
		w = strategy.BuildWorkload(project)
		if w.JobCount() == 0 {
			p.logger.Warn("project has no poll targets", "project", project.Key)
			return nil, nil
		}
		p.active[project.Key] = w
		// creation is announced before any request is issued
		p.notify(func() { p.handler.WorkloadCreated(w) }, w)
		return w, w.Unfinished()
	}

	if p.cfg.WorkloadMaxAge > 0 && time.Since(w.CreatedAt()) > p.cfg.WorkloadMaxAge {
		p.failLocked(w, ErrWorkloadStalled)
		return nil, nil
	}
	return w, w.Unfinished()
}

// issue fires one request for one job on its own goroutine and wires the
// exactly-once resolution back into the workload.
func (p *Poller) issue(ctx context.Context, project ProjectInfo, strategy Strategy, w *Workload, job Job) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		payload, err := strategy.Fetch(ctx, project, job)
		switch {
		case err == nil:
			p.completeJob(w, job.ID, payload)
		case errors.Is(err, ErrBadTarget):
			p.deferJob(w, job, err)
		case ctx.Err() != nil:
			// process shutting down; the workload dies with it
			p.logger.Debug("request abandoned at shutdown",
				"project", w.ProjectKey(), "job", job.ID)
		default:
			p.failWorkload(w, err)
		}
	}()
}

// completeJob stores a job result and finalizes the workload when the
// completion predicate holds. The completion check happens strictly after
// the result is stored; removal happens strictly after the handler is
// notified. Resolutions for a workload no longer in the active set are
// dropped, as are duplicate results for an already finished job.
func (p *Poller) completeJob(w *Workload, jobID string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active[w.ProjectKey()] != w || w.HasResult(jobID) {
		return
	}
	if err := w.StoreResult(jobID, payload); err != nil {
		p.logger.Error("failed to store job result",
			"project", w.ProjectKey(), "job", jobID, "error", err)
		return
	}
	if w.Complete() {
		p.notify(func() { p.handler.WorkloadComplete(w) }, w)
		delete(p.active, w.ProjectKey())
	}
}

// failWorkload fails the whole workload for this cycle, even if sibling
// jobs already succeeded or are still in flight. Late resolutions from
// those siblings are dropped by the active-set check.
func (p *Poller) failWorkload(w *Workload, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLocked(w, cause)
}

func (p *Poller) failLocked(w *Workload, cause error) {
	if p.active[w.ProjectKey()] != w {
		return
	}
	p.notify(func() { p.handler.WorkloadFailed(w, cause) }, w)
	delete(p.active, w.ProjectKey())
}

// deferJob handles a request that could not be constructed. The job stays
// unfinished and is retried next tick; the workload fails only once the
// construction has failed maxBuildSkips times.
func (p *Poller) deferJob(w *Workload, job Job, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active[w.ProjectKey()] != w {
		return
	}
	skips := w.recordBuildSkip(job.ID)
	p.logger.Warn("job deferred, target unresolvable",
		"project", w.ProjectKey(), "job", job.ID, "attempt", skips, "error", cause)
	if skips >= maxBuildSkips {
		p.failLocked(w, fmt.Errorf("%w: job %q: %v", ErrJobUnbuildable, job.ID, cause))
	}
}

// notify invokes a handler callback with panic recovery. A panicking
// handler is a defect of the collaborator; it is logged with a correlation
// id and isolated so one project's failure cannot poison the others.
func (p *Poller) notify(fn func(), w *Workload) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("workload handler panicked",
				"correlation_id", correlationID,
				"project", w.ProjectKey(),
				"workload", w.ID(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
