package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conduct/internal/modules"
	"conduct/internal/services"
)

// initInstrumentation builds the instrumentation server: a dedicated
// listener exposing the Prometheus metrics endpoint. It is a separate
// module so storage or ring editions can run it without the core API.
func (s *Server) initInstrumentation() (*services.Service, error) {
	registry := prometheus.NewRegistry()
	if err := s.registerCollectors(registry); err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              s.cfg.InstrumentationAddr,
		Handler:           instrumentationHandler(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return services.NewService(modules.InstrumentationServer, func(ctx context.Context) error {
		return runHTTPServer(ctx, "Instrumentation", srv)
	}), nil
}

// registerCollectors populates the metrics registry with process and
// runtime collectors plus conduct's own build and target gauges.
func (s *Server) registerCollectors(registry *prometheus.Registry) error {
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "conduct",
		Name:        "build_info",
		Help:        "Build and instance information of the running conduct server.",
		ConstLabels: prometheus.Labels{"version": s.version, "instance": s.instanceID},
	})
	buildInfo.Set(1)

	enabledTargets := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "conduct",
		Name:      "enabled_targets",
		Help:      "Number of module targets this process was asked to run.",
	})
	enabledTargets.Set(float64(len(s.cfg.Targets)))

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "conduct",
		Name:      "uptime_seconds",
		Help:      "Seconds since the server process started.",
	}, func() float64 {
		return time.Since(s.startedAt).Seconds()
	})

	for _, collector := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		enabledTargets,
		uptime,
	} {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// instrumentationHandler wires the metrics routes.
func instrumentationHandler(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}
