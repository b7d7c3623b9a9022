package routes

import (
	"net/http"

	"github.com/BradenHooton/dian-gateway/internal/auth"
	"github.com/BradenHooton/dian-gateway/internal/handlers"
	"github.com/BradenHooton/dian-gateway/internal/middleware"
	"github.com/BradenHooton/dian-gateway/internal/models"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Auth   *handlers.AuthHandler
	User   *handlers.UserHandler
	Admin  *handlers.AdminHandler
	Health http.HandlerFunc
}

// RouteConfig holds the settings RegisterRoutes needs
type RouteConfig struct {
	TokenManager         *auth.TokenManager
	IPConfig             *pkghttp.IPConfig
	RefreshRatePerMinute int
}

// RegisterRoutes registers all application routes. Global admission control
// is installed by the caller on the root router.
func RegisterRoutes(router chi.Router, h Handlers, cfg RouteConfig) {
	router.Get("/health", h.Health)

	// Public routes
	router.Post("/auth/login", h.Auth.Login)
	router.With(middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RefreshRatePerMinute,
		IPConfig:          cfg.IPConfig,
	})).Post("/auth/refresh", h.Auth.Refresh)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.TokenManager))

		r.Get("/users/me", h.User.Me)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))

			r.Get("/hosts/{ip}/block", h.Admin.GetHostBlock)
			r.Delete("/hosts/{ip}/block", h.Admin.ResetHostBlock)
			r.Get("/hosts/{ip}/attempts", h.Admin.ListHostAttempts)
			r.Get("/admission/stats", h.Admin.GetAdmissionStats)
		})
	})
}
