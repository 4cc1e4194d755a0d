// Package poll implements the asynchronous polling engine for buildwatch.
//
// This package is internal to buildwatch. It schedules concurrent HTTP
// requests against CI and issue-tracker backends on two independent
// cadences, assembles per-project workloads whose constituent requests may
// complete in any order, and notifies a handler exactly once per workload
// outcome.
//
// The main components are:
//
//   - [Poller]: the scheduler; owns the active workload set
//   - [Workload]: per-project state machine for one polling cycle
//   - [Strategy]: backend-specific job enumeration and authenticated fetch
//   - [Authenticator]: pre-flight session-token exchange
//   - [Transport]: narrow request interface, injectable for testing
//
// Users of the buildwatch library should not need to interact with this
// package directly. Configuration is done through the main buildwatch
// package.
package poll
