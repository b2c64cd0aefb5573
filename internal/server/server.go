package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"conduct/internal/config"
	"conduct/internal/modules"
	"conduct/internal/services"
	"conduct/pkg/logging"
)

// Server ties the module engine to a concrete edition: it registers this
// build's modules, writes the PID file, reports readiness to systemd and
// delegates the run/shutdown lifecycle to the engine.
type Server struct {
	cfg        config.Config
	version    string
	instanceID string
	startedAt  time.Time

	engine modules.Engine
	mods   modules.Manager
}

// New creates a Server and registers the modules this edition ships.
func New(cfg config.Config, version string) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		version:    version,
		instanceID: uuid.NewString(),
		startedAt:  time.Now(),
	}

	eng := modules.New(cfg.Targets)
	s.engine = eng
	s.mods = eng

	for _, reg := range []struct {
		name    string
		fn      modules.InitFn
		visible bool
	}{
		{modules.All, s.initAll, true},
		{modules.Core, s.initCore, true},
		{modules.InstrumentationServer, s.initInstrumentation, true},
		{modules.ConfigWatcher, s.initConfigWatcher, false},
	} {
		var err error
		if reg.visible {
			err = eng.RegisterModule(reg.name, reg.fn)
		} else {
			err = eng.RegisterInvisibleModule(reg.name, reg.fn)
		}
		if err != nil {
			return nil, fmt.Errorf("registering module %s: %w", reg.name, err)
		}
	}

	return s, nil
}

// initAll is the umbrella module: its dependency edges pull in the rest,
// it contributes no service of its own.
func (s *Server) initAll() (*services.Service, error) {
	return nil, nil
}

// Run blocks until every service has stopped and returns the first
// non-graceful failure. Shutdown must be called from another goroutine,
// typically a signal handler.
func (s *Server) Run(ctx context.Context) error {
	if err := s.writePIDFile(); err != nil {
		return err
	}

	logging.Info("Server", "Starting conduct %s, instance %s, targets: %v",
		s.version, s.instanceID, s.cfg.Targets)

	s.notifySystemd(daemon.SdNotifyReady)
	defer s.notifySystemd(daemon.SdNotifyStopping)

	return s.engine.Run(ctx)
}

// Shutdown initiates a graceful shutdown and waits for it to complete or
// for ctx to expire. Safe to call multiple times and from multiple
// goroutines; only the first call triggers the stop broadcast.
func (s *Server) Shutdown(ctx context.Context, reason string) error {
	return s.engine.Shutdown(ctx, reason)
}

// Modules lists the registered user-visible modules for this edition.
func (s *Server) Modules() []modules.ModuleDescriptor {
	return s.mods.VisibleModules()
}

// writePIDFile retrieves the current process ID and writes it to file.
func (s *Server) writePIDFile() error {
	if s.cfg.PIDFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.PIDFile), 0o700); err != nil {
		return fmt.Errorf("failed to verify pid directory: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(s.cfg.PIDFile, []byte(pid), 0o644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}

	logging.Info("Server", "Wrote PID file %s, pid %s", s.cfg.PIDFile, pid)
	return nil
}

// notifySystemd sends a state notification when running under a systemd
// notify socket. Outside systemd this is a silent no-op.
func (s *Server) notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Server", "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug("Server", "Notified systemd: %s", state)
	}
}
