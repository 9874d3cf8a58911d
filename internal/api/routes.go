package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"confess.share/config"
	"confess.share/internal/cache"
	"confess.share/internal/logger"
	"confess.share/internal/service"
	"confess.share/internal/store"
	"confess.share/web"
)

// Dependencies are the long-lived objects built once at startup.
type Dependencies struct {
	Confessions *service.ConfessionService
	Secrets     *service.SecretService
	Store       store.Store
	Cache       cache.Cache
}

func SetupRouter(deps Dependencies, cfg *config.Config, log *logger.Logger) *chi.Mux {
	h := NewHandler(deps.Confessions, deps.Secrets, map[string]Pinger{
		"store": deps.Store,
		"cache": deps.Cache,
	}, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(log.WithComponent("http")))
	r.Use(Recovery(log))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(SecurityHeaders)

	r.Use(CORS(CORSConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", "Authorization", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	// API routes
	r.Group(func(r chi.Router) {
		reveal := func(next http.Handler) http.Handler { return next }
		if cfg.RateLimit.Enabled {
			r.Use(NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute).Middleware)
			reveal = NewRateLimiter(cfg.RateLimit.RevealPerMin, time.Minute).Middleware
		}
		r.Use(JSONOnly)

		r.Route("/confessions", func(r chi.Router) {
			r.Post("/", h.CreateConfession)
			r.Get("/", h.ListConfessions)
			r.Put("/{id}", h.UpdateConfession)
			r.Delete("/{id}", h.DeleteConfession)
		})

		r.Route("/secrets", func(r chi.Router) {
			r.Post("/", h.CreateSecret)
			r.With(reveal).Get("/{id}", h.RetrieveSecret)
		})
	})

	// Frontend
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))
	r.Get("/", h.Index)
	r.Get("/secret/{id}", h.SecretPage)

	return r
}
