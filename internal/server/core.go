package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"conduct/internal/modules"
	"conduct/internal/services"
	"conduct/pkg/logging"
)

// statusResponse is the payload of GET /api/status.
type statusResponse struct {
	Instance string   `json:"instance"`
	Version  string   `json:"version"`
	Uptime   string   `json:"uptime"`
	Targets  []string `json:"targets"`
	Enabled  []string `json:"enabled"`
}

// initCore builds the core module: the main HTTP API of the server.
func (s *Server) initCore() (*services.Service, error) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.coreHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return services.NewService(modules.Core, func(ctx context.Context) error {
		return runHTTPServer(ctx, "Core", srv)
	}), nil
}

// coreHandler wires the core API routes.
func (s *Server) coreHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		var enabled []string
		for _, desc := range s.Modules() {
			if s.engine.IsModuleEnabled(desc.Name) {
				enabled = append(enabled, desc.Name)
			}
		}

		resp := statusResponse{
			Instance: s.instanceID,
			Version:  s.version,
			Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
			Targets:  s.cfg.Targets,
			Enabled:  enabled,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logging.Error("Core", err, "Failed to encode status response")
		}
	})

	return r
}
