// Package modules implements conduct's module system: named, interdependent
// units of functionality that are registered during bootstrap, resolved to
// a concrete service set per run, and orchestrated as one.
//
// A module is a name plus a factory producing a services.Service. Modules
// declare what they need through the shared DependencyMap; the engine
// expands the configured targets through that table and instantiates a
// service for exactly the modules in the closure. Dependencies decide
// which services must exist, not the order they start in: the service
// manager launches everything concurrently, and a module that needs
// another module ready waits on that module's own readiness signal.
//
// Failure of any single service cascades: the engine's listener reacts by
// shutting the whole set down, and Run returns the first failure cause
// that is not the ErrGracefulStop sentinel.
//
// The dependency table may name modules an edition never registers. Such
// table entries and edge destinations are skipped silently, so one table
// can serve editions with different module sets.
package modules
