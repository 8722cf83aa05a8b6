package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orderline/orders-bff/internal/api/http/handlers"
	"github.com/orderline/orders-bff/internal/auth"
	"github.com/orderline/orders-bff/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Opportunities  *handlers.OpportunitiesHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/hyperlink/:opportunityId", cfg.Auth.Hyperlink)

	orders := app.Group("/orders", cfg.AuthMiddleware.Handle)
	orders.Get("/opportunities", auth.RequireFullSession(), cfg.Opportunities.List)
	orders.Get("/opportunities/:opportunityId", cfg.Opportunities.Get)
	orders.Patch("/opportunities/:opportunityId", cfg.Opportunities.Update)
	orders.Get("/pipelines", auth.RequireFullSession(), auth.RequireRole(domain.RoleAdmin), cfg.Opportunities.Pipelines)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireFullSession(), auth.RequireRole(domain.RoleAdmin))
	admin.Get("/installers", cfg.Admin.Installers)
	admin.Patch("/installers", cfg.Admin.UpdateInstallers)
}
