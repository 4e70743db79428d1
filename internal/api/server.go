// Package api wires the chi router for the admin and settings surface.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/table-talk25/tabletalk-notify/internal/api/handler"
	"github.com/table-talk25/tabletalk-notify/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(st handler.SettingsStore, job handler.SchedulerJob, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(st, job, logger)

	// --- Routes ---

	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/scheduler", h.SchedulerHealth)
	})

	// Administrative surface: manual passes and scheduler control.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/scan", h.ManualScan)
		r.Put("/schedule", h.ReconfigureSchedule)
		r.Delete("/schedule", h.StopSchedule)
		r.Post("/stats/reset", h.ResetStats)
	})

	// User notification settings, consumed by the platform backend.
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/geo-settings", h.GetGeoSettings)
		r.Put("/geo-settings", h.UpdateGeoSettings)
		r.Put("/push-preferences/{group}/{key}", h.SetPushPreference)
	})

	return r
}
