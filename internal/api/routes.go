package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://questspace.app", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public surface: no auth, reachable from email clients and the provider.
	r.Get("/health", h.HealthCheck)
	r.Get("/unsubscribe", h.HandleUnsubscribe)
	r.Post("/webhooks/email", h.HandleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Route("/digest", func(r chi.Router) {
			// The sweep trigger is guarded separately so the platform cron
			// can call it without a user session.
			r.With(h.requireCronSecret).Post("/sweep", h.HandleSweep)

			r.Post("/users/{userID}/send", h.HandleSendToUser)
			r.Get("/users/{userID}/preview", h.HandlePreview)
			r.Get("/stats", h.HandleStats)
		})

		r.Route("/email/preferences", func(r chi.Router) {
			r.Get("/{userID}", h.HandleGetPreferences)
			r.Put("/{userID}", h.HandleUpdatePreferences)
		})
	})

	return r
}
