package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"conduct/pkg/logging"
)

// httpShutdownTimeout bounds the drain of in-flight requests once a module
// has been told to stop. Kept well below the default shutdown grace period
// so an HTTP module never becomes the slowest stopper.
const httpShutdownTimeout = 5 * time.Second

// runHTTPServer serves srv until ctx is canceled, then drains it. This is
// the shared run loop of every HTTP-backed module: one goroutine serves,
// one watches for the stop signal, and the first error of either wins.
func runHTTPServer(ctx context.Context, subsystem string, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info(subsystem, "Listening on %s", srv.Addr)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn(subsystem, "Forcing close after drain timeout: %v", err)
			return srv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	// Propagate the cancellation so the service records a clean stop.
	return ctx.Err()
}
