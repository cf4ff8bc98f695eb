package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-chat/internal/api/http/handlers"
	"github.com/spec-kit/storefront-chat/internal/auth"
	"github.com/spec-kit/storefront-chat/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sessions       *handlers.SessionsHandler
	Messages       *handlers.MessagesHandler
	Tickets        *handlers.TicketsHandler
	Conversations  *handlers.ConversationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	sessions := app.Group("/sessions", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	sessions.Post("/", cfg.Sessions.Mount)
	sessions.Get("/:id", cfg.Sessions.Get)
	sessions.Delete("/:id", cfg.Sessions.Unmount)
	sessions.Post("/:id/reconnect", cfg.Sessions.Reconnect)
	sessions.Get("/:id/notices", cfg.Sessions.Notices)

	sessions.Get("/:id/messages", cfg.Messages.List)
	sessions.Post("/:id/messages", cfg.Messages.Send)
	sessions.Post("/:id/messages/:mid/retry", cfg.Messages.Retry)
	sessions.Delete("/:id/messages/:mid", cfg.Messages.Discard)
	sessions.Post("/:id/read", cfg.Messages.MarkRead)
	sessions.Get("/:id/archive", cfg.Messages.Archive)

	customer := auth.RequireRole(domain.RoleCustomer)
	agent := auth.RequireRole(domain.RoleAgent)

	sessions.Post("/:id/category", customer, cfg.Messages.EnterCategory)
	sessions.Post("/:id/tickets", customer, cfg.Tickets.Create)
	sessions.Get("/:id/tickets", cfg.Tickets.List)
	sessions.Get("/:id/tickets/current", cfg.Tickets.Current)
	sessions.Post("/:id/tickets/resolve", agent, cfg.Tickets.Resolve)

	sessions.Get("/:id/conversations", agent, cfg.Conversations.List)
	sessions.Post("/:id/conversations/refresh", agent, cfg.Conversations.Refresh)
	sessions.Post("/:id/conversations/select", agent, cfg.Conversations.Select)
}
