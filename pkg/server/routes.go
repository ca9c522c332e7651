package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mercator-hq/tollgate/pkg/server/middleware"
	"mercator-hq/tollgate/pkg/telemetry/health"
)

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(&s.config.CORS))
	r.Use(middleware.Tracing(s.tracer))
	r.Use(middleware.Metrics(s.metrics))
	r.Use(middleware.Logging(s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, newNotFound("route not found", "route_not_found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, newInvalid("method not allowed", "", "method_not_allowed"))
	})

	r.Route("/v1", func(r chi.Router) {
		if s.config.Auth.Enabled {
			r.Use(middleware.Auth(&s.config.Auth, s.logger))
		}

		r.Get("/buckets", s.handleListBuckets)

		r.Get("/buckets/{id}", s.handleGetBucket)
		r.Put("/buckets/{id}", s.handlePutBucket)
		r.Delete("/buckets/{id}", s.handleDeleteBucket)
		r.Post("/buckets/{id}/consume", s.handleConsume)
		r.Post("/buckets/{id}/refill", s.handleRefillBucket)
		r.Get("/buckets/{id}/wait", s.handleWait)

		r.Post("/refill", s.handleRefillAll)

		r.Get("/snapshot", s.handleGetSnapshot)
		r.Put("/snapshot", s.handlePutSnapshot)
		r.Post("/snapshots", s.handleCreateSnapshot)
		r.Post("/snapshots/{snapshotID}/restore", s.handleRestoreSnapshot)
	})

	if s.telemetry.Health.Enabled {
		r.Method(http.MethodGet, s.telemetry.Health.LivenessPath, s.health.LivenessHandler())
		r.Method(http.MethodHead, s.telemetry.Health.LivenessPath, s.health.LivenessHandler())
		r.Method(http.MethodGet, s.telemetry.Health.ReadinessPath, s.health.ReadinessHandler())
		r.Method(http.MethodHead, s.telemetry.Health.ReadinessPath, s.health.ReadinessHandler())
	}
	r.Get("/version", health.VersionHandler(s.version))

	if s.metrics.Enabled() {
		r.Method(http.MethodGet, s.telemetry.Metrics.Path, s.metrics.Handler())
	}

	return r
}
