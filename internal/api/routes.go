package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the admin router. metricsHandler may be nil.
func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(m.Timeout(15 * time.Second))
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", h.Stats)

		r.Route("/items/{name}", func(r chi.Router) {
			r.Post("/", h.RegisterItem)
			r.Get("/", h.GetItem)
			r.Put("/", h.SetItem)
			r.Delete("/", h.DeleteItem)
			r.Get("/exists", h.ItemExists)
			r.Get("/registration", h.ItemRegistration)
		})

		r.Route("/env/{name}", func(r chi.Router) {
			r.Get("/", h.GetEnv)
			r.Put("/", h.SetEnv)
			r.Delete("/", h.DeleteEnv)
			r.Get("/exists", h.EnvExists)
		})
	})

	return r
}

// routePattern keeps metric labels bounded to registered routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
