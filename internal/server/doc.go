// Package server assembles a runnable conduct edition on top of the
// module engine. It registers the modules this build ships (the core HTTP
// API, the instrumentation server and the invisible config watcher, plus
// the "all" umbrella), writes the PID file, reports readiness to systemd
// and forwards Run/Shutdown to the engine.
//
// The shared dependency table in the modules package also names ring,
// distributor, memberlist and storage modules that this edition does not
// register; their entries are skipped at run time.
package server
