package modules

import (
	"fmt"
	"sort"
	"sync"

	"conduct/internal/services"
	"conduct/pkg/logging"
)

// InitFn lazily constructs the service for a module. It is invoked at most
// once, and only when the module is part of a resolved target set. A nil
// service (with nil error) is valid and means the module contributes no
// runtime unit of its own, like the umbrella "all" module.
type InitFn func() (*services.Service, error)

type moduleEntry struct {
	name    string
	initFn  InitFn
	visible bool
	deps    []string
}

// Registry maps module names to their factories and holds the dependency
// adjacency table. Registration happens during bootstrap, resolution at
// run time; both are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*moduleEntry
}

// NewRegistry returns an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*moduleEntry)}
}

// Register adds a user-visible module. Registering a name twice fails with
// a DuplicateModuleError; nothing else is validated until resolution.
func (r *Registry) Register(name string, fn InitFn) error {
	return r.register(name, fn, true)
}

// RegisterInvisible adds a module that can be depended on but never
// requested directly as a target, and that module listings omit.
func (r *Registry) RegisterInvisible(name string, fn InitFn) error {
	return r.register(name, fn, false)
}

func (r *Registry) register(name string, fn InitFn, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; exists {
		return &DuplicateModuleError{Module: name}
	}
	r.modules[name] = &moduleEntry{name: name, initFn: fn, visible: visible}
	return nil
}

// IsRegistered reports whether name is a registered module.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[name]
	return ok
}

// AddDependency records that module name requires deps. The source module
// must be registered; destinations that are not registered are dropped
// silently rather than rejected, because the shared dependency table may
// reference modules this edition does not carry. Do not tighten this into
// an error.
func (r *Registry) AddDependency(name string, deps ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.modules[name]
	if !ok {
		return &UnknownModuleError{Module: name}
	}

	for _, dep := range deps {
		if _, ok := r.modules[dep]; !ok {
			logging.Debug("Modules", "Dropping dependency %s -> %s: %s is not registered", name, dep, dep)
			continue
		}
		entry.deps = append(entry.deps, dep)
	}
	return nil
}

// Dependencies returns a copy of the recorded dependency edges for name.
func (r *Registry) Dependencies(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.modules[name]
	if !ok || len(entry.deps) == 0 {
		return nil
	}
	deps := make([]string, len(entry.deps))
	copy(deps, entry.deps)
	return deps
}

// Resolve expands targets to their transitive dependency closure. Every
// target must itself be registered; duplicates are tolerated. The result
// is in dependency order (a module appears after everything it requires)
// and never contains an unregistered module.
func (r *Registry) Resolve(targets ...string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(r.modules))
	var order []string
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case done:
			return nil
		case visiting:
			// Back edge: reconstruct the concrete cycle from the stack.
			idx := 0
			for i, n := range stack {
				if n == name {
					idx = i
					break
				}
			}
			path := append([]string{}, stack[idx:]...)
			path = append(path, name)
			return &CycleError{Path: path}
		}

		marks[name] = visiting
		stack = append(stack, name)
		for _, dep := range r.modules[name].deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[name] = done
		order = append(order, name)
		return nil
	}

	for _, target := range targets {
		if _, ok := r.modules[target]; !ok {
			return nil, &UnknownModuleError{Module: target}
		}
		if err := visit(target); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// InitServices resolves targets and invokes the factory of every module in
// the closure, exactly once each. Modules whose factory returns a nil
// service are resolved but contribute nothing to the returned set.
func (r *Registry) InitServices(targets ...string) (map[string]*services.Service, error) {
	resolved, err := r.Resolve(targets...)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	serviceMap := make(map[string]*services.Service, len(resolved))
	for _, name := range resolved {
		svc, err := r.modules[name].initFn()
		if err != nil {
			return nil, fmt.Errorf("initializing module %s: %w", name, err)
		}
		if svc == nil {
			logging.Debug("Modules", "Module %s contributes no service", name)
			continue
		}
		serviceMap[name] = svc
	}
	return serviceMap, nil
}

// VisibleModules returns the sorted names of all user-visible modules.
func (r *Registry) VisibleModules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, entry := range r.modules {
		if entry.visible {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
