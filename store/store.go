// Package store defines the persistence boundary of buildwatch: which
// projects are due for polling, their stored configuration and credentials,
// and the recording of polling outcomes. The engine consumes it behind a
// narrow interface; a memory implementation serves SDK and test use, and a
// sqlite implementation serves standalone deployment.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Project is the stored configuration of one tracked project.
type Project struct {
	// Key is the opaque, unique identifier of the project.
	Key string

	// Kind is the backend-type discriminator ("basic", "session",
	// "tracker").
	Kind string

	// URLs are the target URLs polled each cycle.
	URLs []string

	// Username and Password are the optional credentials.
	Username string
	Password string

	// AuthURL is the authentication endpoint for session-kind projects.
	AuthURL string

	// Accept is the optional accepted content type.
	Accept string
}

// Outcome records the final state of one polling cycle for a project.
type Outcome struct {
	// Key is the project key.
	Key string

	// OK reports whether the cycle's workload completed.
	OK bool

	// Jobs is the number of jobs the workload carried.
	Jobs int

	// Detail holds the failure cause for failed cycles, empty otherwise.
	Detail string

	// ObservedAt is when the outcome was recorded.
	ObservedAt time.Time
}

// Storer is the interface the polling engine and CLI consume.
//
// DueProjects and DueTrackers enumerate what should be polled on the next
// short-cadence and long-cadence tick respectively; implementations decide
// what "due" means. Record methods persist workload outcomes.
type Storer interface {
	UpsertProject(ctx context.Context, p Project) error
	DueProjects(ctx context.Context) ([]Project, error)
	DueTrackers(ctx context.Context) ([]Project, error)

	RecordSuccess(ctx context.Context, key string, jobs int) error
	RecordFailure(ctx context.Context, key string, jobs int, cause string) error
	LastOutcome(ctx context.Context, key string) (*Outcome, error)

	Close() error
}
