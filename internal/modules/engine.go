package modules

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"conduct/internal/services"
	"conduct/pkg/logging"
)

// Engine manages the lifecycle of the modules selected for this process.
type Engine interface {
	Run(context.Context) error
	Shutdown(context.Context, string) error
	IsModuleEnabled(name string) bool
}

// Manager is the registration surface exposed to the rest of the process
// during bootstrap, before Run.
type Manager interface {
	RegisterModule(name string, fn InitFn) error
	RegisterInvisibleModule(name string, fn InitFn) error
	VisibleModules() []ModuleDescriptor
}

var _ Engine = (*engine)(nil)
var _ Manager = (*engine)(nil)

// engine wires the module registry to the service manager: it resolves the
// configured targets into a concrete service set, runs the set until every
// service stops, and turns any single failure into a coordinated shutdown
// through its listener.
type engine struct {
	targets  []string
	registry *Registry

	mu             sync.Mutex
	serviceManager *services.Manager
	serviceMap     map[string]*services.Service

	stopOnce sync.Once
}

// New creates an engine for the given target module names. Duplicate
// targets are tolerated and treated as a set.
func New(targets []string) *engine {
	return &engine{
		targets:    targets,
		registry:   NewRegistry(),
		serviceMap: map[string]*services.Service{},
	}
}

// RegisterModule registers a user-visible module.
func (e *engine) RegisterModule(name string, fn InitFn) error {
	return e.registry.Register(name, fn)
}

// RegisterInvisibleModule registers a module that may only be used as a
// dependency, never requested as a target.
func (e *engine) RegisterInvisibleModule(name string, fn InitFn) error {
	return e.registry.RegisterInvisible(name, fn)
}

// IsModuleEnabled reports whether name was explicitly requested as a
// target. A module that runs only because something else depends on it is
// not enabled by this predicate.
func (e *engine) IsModuleEnabled(name string) bool {
	return slices.Contains(e.targets, name)
}

// ModuleDescriptor describes a registered user-visible module for listing.
type ModuleDescriptor struct {
	Name         string
	Dependencies []string
	Enabled      bool
}

// VisibleModules returns descriptors for every user-visible module, with
// the dependency edges this edition would actually install.
func (e *engine) VisibleModules() []ModuleDescriptor {
	var result []ModuleDescriptor
	for _, name := range e.registry.VisibleModules() {
		var deps []string
		for _, dep := range DependencyMap[name] {
			if e.registry.IsRegistered(dep) {
				deps = append(deps, dep)
			}
		}
		result = append(result, ModuleDescriptor{
			Name:         name,
			Dependencies: deps,
			Enabled:      e.IsModuleEnabled(name),
		})
	}
	return result
}

// Run starts the services of every module the targets resolve to and
// blocks until all of them have stopped. It waits without any deadline of
// its own: bounding the shutdown is the Shutdown caller's job. The first
// failure cause that is not the graceful-stop sentinel becomes the return
// value.
func (e *engine) Run(ctx context.Context) error {
	// Install dependency edges for every table entry whose module this
	// edition registered. Entries for unregistered modules are skipped,
	// not errors: the table is shared across editions.
	for mod, deps := range DependencyMap {
		if !e.registry.IsRegistered(mod) {
			continue
		}
		if err := e.registry.AddDependency(mod, deps...); err != nil {
			return err
		}
	}

	serviceMap, err := e.registry.InitServices(e.targets...)
	if err != nil {
		return err
	}

	// Nothing to run is success, not an error.
	if len(serviceMap) == 0 {
		logging.Warn("Engine", "No services to run for targets %s", strings.Join(e.targets, ","))
		return nil
	}

	svcs := make([]*services.Service, 0, len(serviceMap))
	for _, s := range serviceMap {
		svcs = append(svcs, s)
	}

	manager, err := services.NewManager(svcs...)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.serviceMap = serviceMap
	e.serviceManager = manager
	e.mu.Unlock()

	manager.AddListener(newServiceListener(e))

	logging.Debug("Engine", "Starting service manager, targets: %s", strings.Join(e.targets, ","))
	if err := manager.StartAll(ctx); err != nil {
		return err
	}

	// Unbounded wait: a context.Background() here never expires, so this
	// only returns once every service is terminal. Only Shutdown callers
	// impose deadlines.
	if err := manager.AwaitAllStopped(context.Background()); err != nil {
		logging.Error("Engine", err, "Failed to await stopped services")
		return err
	}

	for _, failed := range manager.ServicesInState(services.StateFailed) {
		// The listener already logged every failure with its module name;
		// surface the first cause that is not a deliberate stop.
		if !errors.Is(failed.FailureCause(), ErrGracefulStop) {
			return failed.FailureCause()
		}
	}
	return nil
}

// Shutdown stops all services and waits for them to stop. Only the first
// call broadcasts the stop; every call, first or repeated, waits until all
// services are terminal or ctx expires and returns the wait's error. With
// an unbounded ctx this call enforces no deadline of its own.
func (e *engine) Shutdown(ctx context.Context, reason string) error {
	e.mu.Lock()
	manager := e.serviceManager
	e.mu.Unlock()

	if manager == nil {
		logging.Debug("Engine", "No services running, nothing to stop")
		return nil
	}

	e.stopOnce.Do(func() {
		logging.Info("Engine", "Shutdown started, reason: %s", reason)
		manager.StopAll()
	})
	return manager.AwaitAllStopped(ctx)
}
