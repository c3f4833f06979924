// Package handler exposes the commentable service over HTTP.
package handler

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nisimpson/commentable/internal/service"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	// CORSOrigins lists the allowed browser origins. Empty allows any origin.
	CORSOrigins []string
}

// NewRouter creates the HTTP router serving svc.
func NewRouter(svc *service.Service, logger *zap.Logger, opts Options) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{svc: svc, logger: logger}

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", healthCheck)
	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	router.Post("/auth", h.Authenticate)

	router.Route("/commentables/{id}", func(r chi.Router) {
		r.Get("/comments", h.ListComments)
		r.Post("/comments", h.AddComment)
		r.Put("/comments", h.EditComment)
		r.Delete("/comments", h.DeleteComment)

		r.Post("/reactions", h.AddReaction)
		r.Delete("/reactions", h.DeleteReaction)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found.")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	return router
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
