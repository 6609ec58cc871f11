package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/scholarhub/backend/internal/middleware"
)

func NewRouter(handler *Handler, authMiddleware *middleware.AuthMiddleware, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Liveness probe, no body beyond OK
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public search surface
		r.Get("/search", handler.Search)
		r.Get("/search/elis", handler.SearchElis)
		r.Get("/search/openalex", handler.SearchOpenAlex)
		r.Get("/export/ris", handler.ExportRIS)
		r.Get("/health", handler.Health)

		// Administrative harvest triggers
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.AdminOnly)
			r.Post("/harvest/full", handler.RunFullHarvest)
			r.Post("/harvest/incremental", handler.RunIncrementalHarvest)
			r.Post("/harvest/research", handler.RunResearchHarvest)
			r.Post("/harvest/research-incremental", handler.RunResearchIncrementalHarvest)
			r.Post("/fix-urls", handler.FixURLs)
		})
	})

	return r
}
