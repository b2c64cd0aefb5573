package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"conduct/internal/config"
	"conduct/internal/server"
	"conduct/pkg/logging"
)

// serveConfigPath specifies the configuration file. When empty, built-in
// defaults are used.
var serveConfigPath string

// serveTargets overrides the targets from the config file. Each entry is a
// module name; the special name "all" expands to the default module set.
var serveTargets []string

// serveDebug enables verbose logging across the application, regardless of
// the configured log level.
var serveDebug bool

// serveLogFile redirects logging to a file that is reopened on SIGHUP.
var serveLogFile string

// servePIDFile overrides the PID file path from the config file.
var servePIDFile string

// serveCmd defines the serve command structure. This is the main command of
// conduct: it starts the requested modules and supervises their services
// until a signal or a failure stops them.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conduct server with the configured module targets",
	Long: `Starts the conduct server: the modules named by the configured targets
are resolved against the dependency table, initialized in dependency order
and run as one supervised set of services.

The process stops when it receives SIGINT or SIGTERM, or when one of its
services fails. In both cases every remaining service is stopped before the
process exits. SIGHUP reopens the log file, for use after log rotation.

Configuration:
  conduct reads a YAML config file given with --config. Missing files are
  not an error; the built-in defaults are used and flags still apply.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd, os.Stdout)
	if err != nil {
		return err
	}

	if err := initLogging(cfg); err != nil {
		return err
	}
	defer func() {
		_ = logging.Close()
	}()

	srv, err := server.New(cfg, GetVersion())
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	go listenToSystemSignals(srv, cfg.GracePeriod.Std())

	return srv.Run(ctx)
}

// loadServeConfig loads the config file and applies flag overrides.
// Logging is initialized provisionally on out first, so the loader's own
// messages are not dropped; initLogging reconfigures it afterwards from
// the validated config.
func loadServeConfig(cmd *cobra.Command, out io.Writer) (config.Config, error) {
	provisional := logging.LevelInfo
	if serveDebug {
		provisional = logging.LevelDebug
	}
	logging.InitForCLI(provisional, out)

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return config.Config{}, err
	}

	// Flags override the file.
	if cmd.Flags().Changed("target") {
		cfg.Targets = serveTargets
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = serveLogFile
	}
	if cmd.Flags().Changed("pid-file") {
		cfg.PIDFile = servePIDFile
	}
	if serveDebug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogging configures the logging backend from the validated config.
func initLogging(cfg config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.LogFile != "" {
		return logging.InitForFile(level, cfg.LogFile)
	}
	logging.InitForCLI(level, os.Stdout)
	return nil
}

// listenToSystemSignals reacts to process signals: SIGHUP reopens the log
// file, SIGINT and SIGTERM trigger a graceful shutdown bounded by the
// configured grace period.
func listenToSystemSignals(srv *server.Server, gracePeriod time.Duration) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			if err := logging.Reload(); err != nil {
				logging.Error("Server", err, "Failed to reload log file")
			} else {
				logging.Info("Server", "Log file reopened")
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
		if err := srv.Shutdown(ctx, fmt.Sprintf("System signal: %s", sig)); err != nil {
			logging.Error("Server", err, "Graceful shutdown failed")
		}
		cancel()
		return
	}
}

// init registers the serve command and its flags with the root command.
func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to the YAML configuration file")
	serveCmd.Flags().StringSliceVar(&serveTargets, "target", nil, "Module target to run (repeatable, overrides the config file)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable general debug logging")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Write logs to this file instead of stdout")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "Write the process ID to this file at startup")
}
