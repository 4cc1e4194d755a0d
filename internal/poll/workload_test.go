package poll

import (
	"testing"
)

func newTestWorkload(t *testing.T, jobs ...Job) *Workload {
	t.Helper()
	w := NewWorkload("proj")
	for _, j := range jobs {
		if err := w.AddJob(j); err != nil {
			t.Fatalf("AddJob(%q) failed: %v", j.ID, err)
		}
	}
	return w
}

// TestWorkload_CompletionRequiresAllJobs verifies that storing a result for
// one of two jobs does not satisfy the completion predicate, and storing
// both (in either order) does.
func TestWorkload_CompletionRequiresAllJobs(t *testing.T) {
	orders := [][]string{
		{"a", "b"},
		{"b", "a"},
	}

	for _, order := range orders {
		w := newTestWorkload(t,
			Job{ID: "a", Target: "example.com/a"},
			Job{ID: "b", Target: "example.com/b"},
		)

		if w.Complete() {
			t.Fatal("empty workload with jobs reported complete")
		}

		if err := w.StoreResult(order[0], []byte("one")); err != nil {
			t.Fatalf("StoreResult(%q) failed: %v", order[0], err)
		}
		if w.Complete() {
			t.Errorf("workload complete after result for %q alone", order[0])
		}

		if err := w.StoreResult(order[1], []byte("two")); err != nil {
			t.Fatalf("StoreResult(%q) failed: %v", order[1], err)
		}
		if !w.Complete() {
			t.Errorf("workload not complete after results in order %v", order)
		}
	}
}

// TestWorkload_DuplicateJobID verifies job ids are unique within a workload.
func TestWorkload_DuplicateJobID(t *testing.T) {
	w := newTestWorkload(t, Job{ID: "a", Target: "example.com"})

	if err := w.AddJob(Job{ID: "a", Target: "other.example.com"}); err == nil {
		t.Error("expected error adding duplicate job id")
	}
}

// TestWorkload_StoreResultValidation verifies results can only be stored
// for known jobs and only once per job.
func TestWorkload_StoreResultValidation(t *testing.T) {
	w := newTestWorkload(t, Job{ID: "a", Target: "example.com"})

	if err := w.StoreResult("missing", nil); err == nil {
		t.Error("expected error storing result for unknown job")
	}
	if err := w.StoreResult("a", []byte("x")); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}
	if err := w.StoreResult("a", []byte("y")); err == nil {
		t.Error("expected error storing second result for same job")
	}
}

// TestWorkload_Unfinished verifies the unfinished set is jobs minus
// results, sorted by id.
func TestWorkload_Unfinished(t *testing.T) {
	w := newTestWorkload(t,
		Job{ID: "c", Target: "example.com/c"},
		Job{ID: "a", Target: "example.com/a"},
		Job{ID: "b", Target: "example.com/b"},
	)

	if err := w.StoreResult("b", []byte("done")); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	unfinished := w.Unfinished()
	if len(unfinished) != 2 {
		t.Fatalf("expected 2 unfinished jobs, got %d", len(unfinished))
	}
	if unfinished[0].ID != "a" || unfinished[1].ID != "c" {
		t.Errorf("unexpected unfinished set: %v", unfinished)
	}
}

// TestWorkload_ResultsCopy verifies Results returns an independent copy.
func TestWorkload_ResultsCopy(t *testing.T) {
	w := newTestWorkload(t, Job{ID: "a", Target: "example.com"})
	if err := w.StoreResult("a", []byte("payload")); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	results := w.Results()
	results["a"][0] = 'X'
	delete(results, "a")

	again := w.Results()
	if string(again["a"]) != "payload" {
		t.Errorf("stored result mutated through copy: %q", again["a"])
	}
}
