package modules

import (
	"context"
	"errors"

	"conduct/internal/services"
	"conduct/pkg/logging"
)

var _ services.Listener = (*serviceListener)(nil)

// serviceListener is the failure-cascade mechanism: any single service
// failure triggers a shutdown of the whole set through the engine.
type serviceListener struct {
	engine *engine
}

func newServiceListener(e *engine) *serviceListener {
	return &serviceListener{engine: e}
}

func (l *serviceListener) Healthy() {
	logging.Info("Engine", "All modules healthy")
}

func (l *serviceListener) Stopped() {
	logging.Info("Engine", "All modules stopped")
}

func (l *serviceListener) Failure(svc *services.Service) {
	// If any service fails, stop all services.
	if err := l.engine.Shutdown(context.Background(), svc.FailureCause().Error()); err != nil {
		logging.Error("Engine", err, "Failed to stop all modules")
	}

	// Log which module failed. Failures are rare and the set is small, so
	// a linear scan is fine.
	l.engine.mu.Lock()
	serviceMap := l.engine.serviceMap
	l.engine.mu.Unlock()

	for module, s := range serviceMap {
		if s == svc {
			if errors.Is(svc.FailureCause(), ErrGracefulStop) {
				logging.Info("Engine", "Received stop signal via return error, module: %s, cause: %s", module, svc.FailureCause())
			} else {
				logging.Error("Engine", svc.FailureCause(), "Module failed: %s", module)
			}
			return
		}
	}

	logging.Error("Engine", svc.FailureCause(), "Module failed: %s", "unknown")
}
