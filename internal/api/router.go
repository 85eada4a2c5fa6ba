package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds dependency checks made by the health endpoint.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/monitors", func(r chi.Router) {
			r.Get("/", s.handleListMonitors)
			r.Post("/scan", s.handleScan)
			r.Post("/refresh", s.handleRefresh)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMonitor)
				r.Put("/brightness", s.handleSetBrightness)
				r.Put("/name", s.handleRename)
			})
		})

		r.Route("/names", func(r chi.Router) {
			r.Get("/", s.handleListNames)
			r.Post("/persist", s.handlePersistNames)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports server status and the state of optional
// dependencies. A failing database makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"scanning": s.ctrl.IsScanning(),
		"monitors": s.ctrl.Registry().Len(),
	}

	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp["database"] = "ok"
		}
	}

	writeJSON(w, status, resp)
}
