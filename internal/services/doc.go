// Package services implements the runtime half of the module system: the
// per-service lifecycle state machine and the Manager that drives a fixed
// set of services concurrently.
//
// A Service moves through Idle → Starting → Running → Stopping →
// Terminated, with Failed as an alternate terminal state reachable from
// Starting, Running or Stopping. Transitions are driven by the owning
// Manager and by the service's own run goroutine; no two goroutines ever
// mutate the same service concurrently.
//
// The Manager starts all services concurrently (StartAll), broadcasts stop
// via a single shared cancellation context (StopAll) and lets callers wait
// for full termination (AwaitAllStopped). Aggregate state changes are
// reported to a single Listener: all-healthy once, all-stopped once, and
// one Failure call per failing service. The failure callback is how one
// service's crash is escalated into a coordinated shutdown of the rest.
package services
