package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory [Storer] implementation.
//
// Every registered project is considered due on every tick; outcome
// history keeps only the most recent entry per project. MemoryStore is
// safe for concurrent use and is the default store for SDK embedding and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
	outcomes map[string]Outcome
}

// NewMemoryStore creates an empty [MemoryStore], immediately ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]Project),
		outcomes: make(map[string]Outcome),
	}
}

// UpsertProject stores a project, replacing any existing one with the same
// key.
func (m *MemoryStore) UpsertProject(_ context.Context, p Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.Key] = p
	return nil
}

// DueProjects returns all non-tracker projects, sorted by key.
func (m *MemoryStore) DueProjects(_ context.Context) ([]Project, error) {
	return m.byKind(false), nil
}

// DueTrackers returns all tracker projects, sorted by key.
func (m *MemoryStore) DueTrackers(_ context.Context) ([]Project, error) {
	return m.byKind(true), nil
}

func (m *MemoryStore) byKind(tracker bool) []Project {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Project
	for _, p := range m.projects {
		if (p.Kind == "tracker") == tracker {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Key < out[k].Key })
	return out
}

// RecordSuccess records a completed polling cycle for the project.
func (m *MemoryStore) RecordSuccess(_ context.Context, key string, jobs int) error {
	m.record(Outcome{Key: key, OK: true, Jobs: jobs, ObservedAt: time.Now()})
	return nil
}

// RecordFailure records a failed polling cycle for the project.
func (m *MemoryStore) RecordFailure(_ context.Context, key string, jobs int, cause string) error {
	m.record(Outcome{Key: key, Jobs: jobs, Detail: cause, ObservedAt: time.Now()})
	return nil
}

func (m *MemoryStore) record(o Outcome) {
	m.mu.Lock()
	m.outcomes[o.Key] = o
	m.mu.Unlock()
}

// LastOutcome returns the most recent outcome for the project, or
// [ErrNotFound] if none has been recorded.
func (m *MemoryStore) LastOutcome(_ context.Context, key string) (*Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.outcomes[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
