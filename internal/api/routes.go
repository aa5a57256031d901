package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Post("/conversations", h.SaveConversation)

				r.Post("/product-info", h.SaveProductInfo)
				r.Get("/product-info", h.GetProductInfo)

				r.Post("/bullets", h.AddBulletScreen)
				r.Get("/bullets/pending", h.PendingBulletScreens)
				r.Post("/bullets/processed", h.MarkBulletScreensProcessed)

				r.Post("/chat/resolve", h.ResolveChat)
				r.Post("/cache", h.CacheAnswer)

				r.Post("/faq/apply", h.ApplyFAQTemplates)
				r.Get("/faq/statistics", h.SessionFAQStatistics)
				r.Get("/faq/recommendations", h.FAQRecommendations)
			})
		})

		r.Route("/faq", func(r chi.Router) {
			r.Get("/templates", h.FAQTemplates)
			r.Get("/statistics", h.GlobalFAQStatistics)
		})
	})

	return r
}
