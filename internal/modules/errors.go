package modules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGracefulStop is the sentinel a module's run loop returns to stop the
// whole process deliberately. The service that returns it is recorded as
// failed with this cause, the usual cascade shuts everything down, but the
// engine does not surface it as an error and the listener logs it at info
// level instead of error.
var ErrGracefulStop = errors.New("graceful stop requested")

// DuplicateModuleError is returned when a module name is registered twice.
type DuplicateModuleError struct {
	Module string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %s already registered", e.Module)
}

// UnknownModuleError is returned when a requested target, or the source of
// a dependency edge, is not a registered module. Edge destinations are
// deliberately exempt: see Registry.AddDependency.
type UnknownModuleError struct {
	Module string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("unknown module %s", e.Module)
}

// CycleError is returned when the dependency closure of the requested
// targets contains a cycle. Path holds one concrete cycle, first node
// repeated at the end, for diagnostics.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic module dependency: %s", strings.Join(e.Path, " -> "))
}
