package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the complete route tree with middleware.
//
// Every route is registered twice: under /api/v1 and at the root, so legacy
// unversioned clients keep working. Both aliases resolve to the same handler
// and the same metric series.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to all routes.
	r.Use(s.requestIDMiddleware)
	r.Use(s.apiVersionMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", s.registerRoutes)
	r.Group(s.registerRoutes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeInvalidInput, "method not allowed")
	})

	return r
}

// registerRoutes registers the API surface on the given router. Called once
// for the versioned prefix and once for the legacy root alias.
func (s *Server) registerRoutes(r chi.Router) {
	// Health is open: orchestrators probe it before tokens exist.
	r.Get("/health", s.handleHealth)

	// Everything else passes metrics, auth, then the rate limiter.
	// Metrics sits outermost so rejected requests are counted too.
	r.Group(func(r chi.Router) {
		r.Use(s.metricsMiddleware)
		r.Use(s.authMiddleware)
		r.Use(s.rateLimitMiddleware)

		r.Get("/status", s.handleStatus)
		r.Get("/version", s.handleVersion)
		r.Get("/logs", s.handleLogs)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/apps", s.handleListApps)
		r.Post("/app/launch", s.handleLaunchApp)
		r.Post("/app/stop", s.handleStopApp)
		r.Post("/app/intent", s.handleSendIntent)

		r.Get("/properties", s.handleGetProperties)
		r.Post("/properties/set", s.handleSetProperties)

		r.Post("/container/restart", s.handleRestartContainer)
		r.Post("/screenshot", s.handleScreenshot)

		r.Get("/webhooks", s.handleListWebhooks)
		r.Post("/webhooks", s.handleRegisterWebhook)
		r.Delete("/webhooks/{id}", s.handleRemoveWebhook)

		r.Get("/audit", s.handleAuditLog)

		r.Post("/ws-ticket", s.handleWSTicket)
	})

	// The WebSocket upgrade authenticates with a single-use ticket instead of
	// a bearer token: browsers cannot set an Authorization header on upgrade
	// requests. Obtaining a ticket via /ws-ticket still requires the token.
	r.Group(func(r chi.Router) {
		r.Use(s.metricsMiddleware)

		r.Get("/ws", s.handleWebSocket)
	})
}
