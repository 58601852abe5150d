package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the dependency probe in GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metrics.middleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Put("/", s.handleUpdateTask)
			r.Delete("/", s.handleDeleteTask)
			r.Get("/done", s.handleListDoneTasks)
			r.Get("/{id}", s.handleGetTask)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Get("/current", s.handleCurrentUser)
			r.Put("/update", s.handleUpdateCurrentUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})

		r.Get("/audit/", s.handleListAuditLogs)

		// WebSocket: the session cookie is resolved before upgrade.
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports service status. A failing database or connected
// sink makes the service "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.sinks)+1)
	code := http.StatusOK

	check := func(name string, hc HealthChecker) {
		if err := hc.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			checks[name] = "unavailable"
			code = http.StatusServiceUnavailable
			return
		}
		checks[name] = "ok"
	}

	if s.db != nil {
		check("database", s.db)
	}
	for name, hc := range s.sinks {
		check(name, hc)
	}

	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
