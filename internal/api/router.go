package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{address}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/history", s.handleGetDeviceHistory)
			})
		})

		// Signal stream
		r.Get("/signals", s.handleSignals)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
