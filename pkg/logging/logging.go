package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO for unknown
	}
}

// ParseLevel converts a configuration string ("debug", "info", "warn",
// "error") into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger

	// logFile is set only when InitForFile was used. Reload reopens it.
	logFile     *os.File
	logFilePath string
)

// initCommon installs a text handler writing to output with the given
// minimum level. It should be called once at application startup.
func initCommon(level LogLevel, output io.Writer) {
	opts := &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}
	handler := slog.NewTextHandler(output, opts)

	mu.Lock()
	defaultLogger = slog.New(handler)
	mu.Unlock()

	slog.SetDefault(slog.New(handler)) // Set for any global slog calls if necessary
}

// InitForCLI initializes the logging system for CLI output.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	mu.Lock()
	logFile = nil
	logFilePath = ""
	mu.Unlock()

	initCommon(filterLevel, output)
}

// InitForFile initializes the logging system writing to the given file.
// The file can be reopened with Reload, typically on SIGHUP after log
// rotation.
func InitForFile(filterLevel LogLevel, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}

	mu.Lock()
	old := logFile
	logFile = f
	logFilePath = path
	mu.Unlock()

	initCommon(filterLevel, &fileWriter{})

	if old != nil {
		if cerr := old.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "Failed to close previous log file: %s\n", cerr)
		}
	}
	return nil
}

// Reload reopens the log file when file-backed logging is active. It is a
// no-op for writer-backed logging, so callers can wire it to a reload
// signal unconditionally.
func Reload() error {
	mu.RLock()
	path := logFilePath
	mu.RUnlock()

	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen log file %s: %w", path, err)
	}

	mu.Lock()
	old := logFile
	logFile = f
	mu.Unlock()

	if old != nil {
		if cerr := old.Close(); cerr != nil {
			return fmt.Errorf("close rotated log file: %w", cerr)
		}
	}
	return nil
}

// fileWriter indirects writes through the current logFile so Reload can
// swap the file underneath the slog handler.
type fileWriter struct{}

func (w *fileWriter) Write(p []byte) (int, error) {
	mu.RLock()
	f := logFile
	mu.RUnlock()

	if f == nil {
		return os.Stderr.Write(p)
	}
	return f.Write(p)
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	mu.RLock()
	logger := defaultLogger
	mu.RUnlock()

	if logger == nil || !logger.Enabled(context.Background(), level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	var slogAttrs []slog.Attr
	slogAttrs = append(slogAttrs, slog.String("subsystem", subsystem))
	if err != nil {
		slogAttrs = append(slogAttrs, slog.String("error", err.Error()))
	}

	logger.LogAttrs(context.Background(), level.SlogLevel(), msg, slogAttrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// Close flushes and closes the log file if one is open. Should be called
// on application shutdown.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logFilePath = ""
	return err
}
