package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/thriftin-utm/account-service/internal/auth"
	"github.com/thriftin-utm/account-service/internal/handlers"
	"github.com/thriftin-utm/account-service/internal/middleware"
	"github.com/thriftin-utm/account-service/internal/models"
	pkghttp "github.com/thriftin-utm/account-service/pkg/http"
)

// Dependencies bundles what the route table needs
type Dependencies struct {
	AuthHandler  *handlers.AuthHandler
	AdminHandler *handlers.AdminHandler
	TokenManager *auth.TokenManager
	Accounts     auth.AccountFetcher
	DB           handlers.Pinger
	IPConfig     *pkghttp.IPConfig
	Logger       *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	rateLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit(), deps.IPConfig)

	router.Get("/health", handlers.Health(deps.DB))

	// Public routes
	router.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/auth/register", deps.AuthHandler.Register)
		r.Post("/auth/login", deps.AuthHandler.Login)
		r.Post("/auth/password-reset/request", deps.AuthHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/confirm", deps.AuthHandler.ConfirmPasswordReset)
	})

	// Authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.TokenManager))

		r.Get("/auth/me", deps.AuthHandler.Me)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(deps.Accounts, models.RoleAdmin, deps.Logger))
			r.Get("/dashboard/stats", deps.AdminHandler.GetDashboardStats)
			r.Get("/login-attempts", deps.AdminHandler.ListLoginAttempts)
			r.Post("/accounts/{id}/unlock", deps.AdminHandler.UnlockAccount)
		})
	})
}
