package poll

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Job is one named fetch required to determine a project's current status.
//
// The ID is unique within a workload; the Target is the raw target string
// as configured, before any request shaping is applied.
type Job struct {
	// ID identifies the job within its workload.
	ID string

	// Target is the URL (or URL-like string) to fetch for this job.
	Target string
}

// Workload tracks one polling cycle for one project: the fixed set of jobs
// that constitute the cycle and the results collected so far.
//
// A workload is created by a [Strategy], owned by the [Poller] for the
// duration of one polling attempt, and discarded the moment it either
// completes or any of its jobs fails. Jobs are added before any request is
// issued and never mutated afterward for that cycle.
//
// Workload is not safe for concurrent use on its own; the Poller serializes
// all mutations under its active-set lock.
type Workload struct {
	id         string
	projectKey string
	createdAt  time.Time

	jobs       map[string]Job
	results    map[string][]byte
	buildSkips map[string]int
}

// NewWorkload creates an empty workload for the given project key.
func NewWorkload(projectKey string) *Workload {
	return &Workload{
		id:         uuid.NewString(),
		projectKey: projectKey,
		createdAt:  time.Now(),
		jobs:       make(map[string]Job),
		results:    make(map[string][]byte),
		buildSkips: make(map[string]int),
	}
}

// ID returns the workload's unique identifier.
func (w *Workload) ID() string { return w.id }

// ProjectKey returns the key of the project this workload polls.
func (w *Workload) ProjectKey() string { return w.projectKey }

// CreatedAt returns the time the workload was created.
func (w *Workload) CreatedAt() time.Time { return w.createdAt }

// AddJob registers a job with the workload.
//
// Returns an error if a job with the same ID is already registered.
func (w *Workload) AddJob(j Job) error {
	if _, ok := w.jobs[j.ID]; ok {
		return fmt.Errorf("duplicate job id %q", j.ID)
	}
	w.jobs[j.ID] = j
	return nil
}

// JobCount returns the number of jobs in the workload.
func (w *Workload) JobCount() int { return len(w.jobs) }

// StoreResult records the raw response payload for a job.
//
// Returns an error if the job ID is unknown or a result for it has already
// been stored.
func (w *Workload) StoreResult(jobID string, payload []byte) error {
	if _, ok := w.jobs[jobID]; !ok {
		return fmt.Errorf("unknown job id %q", jobID)
	}
	if _, ok := w.results[jobID]; ok {
		return fmt.Errorf("result already stored for job %q", jobID)
	}
	w.results[jobID] = payload
	return nil
}

// HasResult reports whether a result has been stored for the given job.
func (w *Workload) HasResult(jobID string) bool {
	_, ok := w.results[jobID]
	return ok
}

// Complete reports whether every job has produced a stored result.
func (w *Workload) Complete() bool {
	return len(w.results) == len(w.jobs)
}

// Unfinished returns the jobs that have no stored result yet, sorted by ID
// for deterministic iteration.
func (w *Workload) Unfinished() []Job {
	var jobs []Job
	for id, j := range w.jobs {
		if _, done := w.results[id]; !done {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs
}

// Results returns a copy of the collected results, keyed by job ID.
func (w *Workload) Results() map[string][]byte {
	cp := make(map[string][]byte, len(w.results))
	for id, payload := range w.results {
		cp[id] = append([]byte(nil), payload...)
	}
	return cp
}

// recordBuildSkip increments the count of request-construction failures for
// a job and returns the new count. Used by the Poller to cap retries of
// permanently malformed targets.
func (w *Workload) recordBuildSkip(jobID string) int {
	w.buildSkips[jobID]++
	return w.buildSkips[jobID]
}
