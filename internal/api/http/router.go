package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/alert-engine/internal/api/http/handlers"
	"github.com/spec-kit/alert-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Alerts         *handlers.AlertsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	alerts := app.Group("/alerts", cfg.AuthMiddleware.Handle, auth.RequireAgent())
	alerts.Post("/analysis/trigger", cfg.Alerts.TriggerAnalysis)
	alerts.Get("/stats", cfg.Alerts.GetStats)
	alerts.Get("/", cfg.Alerts.ListAlerts)
	alerts.Get("/:id", cfg.Alerts.GetAlert)
	alerts.Post("/:id/acknowledge", cfg.Alerts.Acknowledge)
	alerts.Post("/:id/resolve", cfg.Alerts.Resolve)
	alerts.Post("/:id/dismiss", cfg.Alerts.Dismiss)
}
