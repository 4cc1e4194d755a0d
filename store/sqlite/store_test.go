package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/buildwatch/buildwatch/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "buildwatch.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := store.Project{
		Key:      "pipelines",
		Kind:     "session",
		URLs:     []string{"ci.example.com/p/1", "ci.example.com/p/2"},
		Username: "me",
		Password: "pw",
		AuthURL:  "ci.example.com/auth",
		Accept:   "application/json",
	}
	if err := s.UpsertProject(ctx, p); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}

	due, err := s.DueProjects(ctx)
	if err != nil {
		t.Fatalf("DueProjects failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 project, got %d", len(due))
	}
	got := due[0]
	if got.Key != p.Key || got.Kind != p.Kind || got.Username != p.Username ||
		got.Password != p.Password || got.AuthURL != p.AuthURL || got.Accept != p.Accept {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, p)
	}
	if len(got.URLs) != 2 || got.URLs[0] != p.URLs[0] || got.URLs[1] != p.URLs[1] {
		t.Errorf("URLs mismatch: %v", got.URLs)
	}
}

func TestStore_DueSplitsByKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed := []store.Project{
		{Key: "site", Kind: "basic", URLs: []string{"ci.example.com/feed"}},
		{Key: "issues", Kind: "tracker", URLs: []string{"tracker.example.com/validate"}},
	}
	for _, p := range seed {
		if err := s.UpsertProject(ctx, p); err != nil {
			t.Fatalf("UpsertProject(%q) failed: %v", p.Key, err)
		}
	}

	due, err := s.DueProjects(ctx)
	if err != nil {
		t.Fatalf("DueProjects failed: %v", err)
	}
	if len(due) != 1 || due[0].Key != "site" {
		t.Errorf("unexpected due projects: %+v", due)
	}

	trackers, err := s.DueTrackers(ctx)
	if err != nil {
		t.Fatalf("DueTrackers failed: %v", err)
	}
	if len(trackers) != 1 || trackers[0].Key != "issues" {
		t.Errorf("unexpected due trackers: %+v", trackers)
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpsertProject(ctx, store.Project{Key: "site", Kind: "basic", URLs: []string{"old.example.com"}}); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}
	if err := s.UpsertProject(ctx, store.Project{Key: "site", Kind: "basic", URLs: []string{"new.example.com"}, Username: "me"}); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}

	due, err := s.DueProjects(ctx)
	if err != nil {
		t.Fatalf("DueProjects failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 project after upsert, got %d", len(due))
	}
	if due[0].URLs[0] != "new.example.com" || due[0].Username != "me" {
		t.Errorf("upsert did not replace: %+v", due[0])
	}
}

func TestStore_OutcomeHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpsertProject(ctx, store.Project{Key: "site", Kind: "basic", URLs: []string{"ci.example.com"}}); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}

	if _, err := s.LastOutcome(ctx, "site"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound before any outcome, got %v", err)
	}

	if err := s.RecordSuccess(ctx, "site", 2); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if err := s.RecordFailure(ctx, "site", 2, "stalled"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	o, err := s.LastOutcome(ctx, "site")
	if err != nil {
		t.Fatalf("LastOutcome failed: %v", err)
	}
	if o.OK {
		t.Error("latest outcome should be the failure")
	}
	if o.Detail != "stalled" || o.Jobs != 2 {
		t.Errorf("unexpected outcome %+v", o)
	}
	if o.ObservedAt.IsZero() {
		t.Error("ObservedAt not persisted")
	}
}
