// Package buildwatch continuously polls heterogeneous CI backends for
// build status of tracked projects, and separately polls issue-tracking
// backends for validation.
//
// The core of the library is an asynchronous polling engine: on a fixed
// cadence it issues many concurrent HTTP requests per tracked project,
// assembles multi-request workloads whose parts may complete in any order,
// and records exactly one outcome per workload, success or failure.
//
// # Quick Start
//
// Create projects and start the watcher with graceful shutdown:
//
//	p, _ := buildwatch.NewProject("website", buildwatch.Basic,
//	    []string{"ci.example.com/feed", "ci.example.com/status"},
//	    buildwatch.WithCredentials("me", "pw"),
//	)
//	w, _ := buildwatch.New(buildwatch.WithProject(p))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// buildwatch uses the functional options pattern:
//
//	w, err := buildwatch.New(
//	    buildwatch.WithProjects(p1, p2),
//	    buildwatch.WithPollInterval(30 * time.Second),
//	    buildwatch.WithTrackerInterval(5 * time.Minute),
//	    buildwatch.WithDatabase("/var/lib/buildwatch/buildwatch.db"),
//	    buildwatch.WithOutcomeCallback(func(o buildwatch.Outcome) { ... }),
//	)
//
// # Backend kinds
//
// Each project carries a backend kind selecting how its requests are
// authenticated:
//
//   - [Basic]: credentials ride on every request as HTTP basic auth
//   - [Session]: a session-token exchange precedes each fetch; the token
//     rides on the feed request as a bearer credential
//   - [Tracker]: issue-tracker validation targets, polled on the long
//     cadence with Basic-style shaping
//
// # Architecture
//
// buildwatch is split across a few packages:
//
//   - internal/poll: the scheduler, workload state machine, strategies,
//     authenticator, and transport
//   - store: project/outcome storage (memory and sqlite); implement
//     [store.Storer] and pass it via [WithStore] to bring your own
//
// The internal packages are not part of the public API and may change
// without notice. The library is designed for single-binary deployment;
// see cmd/buildwatch for the standalone CLI.
package buildwatch
