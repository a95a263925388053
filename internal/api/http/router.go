package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-gateway/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-gateway/internal/auth"
	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Account    *handlers.AccountHandler
	Onboarding *handlers.OnboardingHandler
	Gate       *auth.GateMiddleware
	Metrics    fiber.Handler
}

// RegisterRoutes wires HTTP routes. Every route sits behind the access gate;
// the route policy decides which of them are public.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/otp/send", cfg.Auth.SendOTP)
	authGroup.Post("/otp/verify", cfg.Auth.VerifyOTP)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", cfg.Account.Session)

	api := app.Group("/api", cfg.Account.KeepFresh)
	api.Get("/me", cfg.Account.Me)
	api.Get("/professional/onboarding", auth.RequireRole(domain.RoleProfessional), cfg.Onboarding.Status)

	app.Get("/professional/dashboard", auth.RequireRole(domain.RoleProfessional), cfg.Onboarding.Dashboard)
}
