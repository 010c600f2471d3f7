package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/opsdesk/internal/api/http/handlers"
	"github.com/spec-kit/opsdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Tickets         *handlers.TicketsHandler
	ActorMiddleware *auth.ActorMiddleware
	Metrics         http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	tickets := app.Group("/tickets")
	if cfg.ActorMiddleware != nil {
		tickets.Use(cfg.ActorMiddleware.Handle)
	}
	tickets.Get("/:kind", cfg.Tickets.ListTickets)
	tickets.Post("/:kind", cfg.Tickets.CreateTicket)
	tickets.Put("/:kind", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:kind", cfg.Tickets.DeleteTicket)

	tickets.Get("/:kind/stats", cfg.Tickets.Stats)
	tickets.Get("/:kind/:id/history", cfg.Tickets.History)
	tickets.Get("/:kind/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:kind/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:kind/:id", cfg.Tickets.DeleteTicket)
}
