package server

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"conduct/internal/modules"
	"conduct/internal/services"
	"conduct/pkg/logging"
)

// initConfigWatcher builds the invisible config-watcher module. It does
// not hot-reload anything; it tells the operator that the file on disk no
// longer matches the running configuration. When no config file was
// loaded the module contributes no service.
func (s *Server) initConfigWatcher() (*services.Service, error) {
	path := s.cfg.Path
	if path == "" {
		return nil, nil
	}

	return services.NewService(modules.ConfigWatcher, func(ctx context.Context) error {
		return watchConfigFile(ctx, path)
	}), nil
}

// watchConfigFile watches path until ctx is canceled, logging a warning on
// every write. The parent directory is watched rather than the file itself
// so editors and config managers that replace the file atomically are
// still seen.
func watchConfigFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Degrade instead of failing the whole server over a missing
		// inotify facility.
		logging.Warn("ConfigWatcher", "File watching unavailable: %v", err)
		<-ctx.Done()
		return ctx.Err()
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			logging.Warn("ConfigWatcher", "Error closing watcher: %v", cerr)
		}
	}()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		logging.Warn("ConfigWatcher", "Cannot watch %s: %v", dir, err)
		<-ctx.Done()
		return ctx.Err()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		target = path
	}

	logging.Debug("ConfigWatcher", "Watching %s", path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				<-ctx.Done()
				return ctx.Err()
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, aerr := filepath.Abs(event.Name)
			if aerr != nil {
				name = event.Name
			}
			if name != target {
				continue
			}
			logging.Warn("ConfigWatcher", "Configuration file %s changed on disk; restart to apply", path)
		case werr, ok := <-watcher.Errors:
			if !ok {
				<-ctx.Done()
				return ctx.Err()
			}
			logging.Error("ConfigWatcher", werr, "Watch error")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
