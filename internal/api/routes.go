package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/auth"
)

// SetupRoutes configures all routes. The admin API under /api is guarded by
// the auth middleware when an auth manager is supplied; visitor-facing funnel
// routes under /f are always public.
func SetupRoutes(h *Handlers, authManager *auth.Manager) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - allow credentials for auth cookies
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	// Auth routes (no auth required)
	if authManager != nil {
		r.Get("/auth/login", authManager.HandleLogin)
		r.Get("/auth/callback", authManager.HandleCallback)
		r.Get("/auth/logout", authManager.HandleLogout)
		r.Get("/auth/user", authManager.HandleUserInfo)
	}

	// Admin API (protected by auth middleware)
	devMode := os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development"

	r.Route("/api", func(r chi.Router) {
		if authManager != nil && !devMode {
			r.Use(func(next http.Handler) http.Handler {
				return authManager.RequireAuth(next)
			})
		}

		r.Route("/funnels", func(r chi.Router) {
			r.Get("/", h.HandleListFunnels)
			r.Post("/", h.HandleCreateFunnel)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetFunnel)
				r.Put("/", h.HandleUpdateFunnel)
				r.Delete("/", h.HandleDeleteFunnel)

				r.Post("/extract", h.HandleReextract)
				r.Post("/generate", h.HandleGeneratePages)
				r.Post("/pages/{page}/edit", h.HandleEditPage)

				r.Get("/sessions", h.HandleFunnelSessions)
				r.Get("/submissions", h.HandleFunnelSubmissions)
				r.Get("/analytics", h.HandleFunnelAnalytics)
			})
		})
	})

	// Public funnel routes
	r.Route("/f/{slug}", func(r chi.Router) {
		r.Get("/", h.HandleRegistrationPage)
		r.Get("/confirmation", h.HandleConfirmationPage)
		r.Post("/register", h.HandleRegister)
		r.Get("/calendar/google", h.HandleCalendarGoogle)
		r.Get("/calendar/ics", h.HandleCalendarICS)
	})

	return r
}
