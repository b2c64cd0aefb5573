// Package logging provides structured logging for conduct with unified
// log handling built on Go's standard slog package.
//
// All log entries carry a subsystem identifier so output can be filtered
// by component (Engine, Modules, Server, ConfigLoader, ...). The package
// supports two output modes:
//
//   - InitForCLI: writes to an arbitrary io.Writer, typically stdout.
//   - InitForFile: writes to a file that can be reopened with Reload,
//     which the serve command wires to SIGHUP for log rotation.
//
// Usage:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Server", "starting with %d targets", n)
//	logging.Error("Engine", err, "module %s failed", name)
package logging
