package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-routing/internal/api/http/handlers"
	"github.com/spec-kit/ticket-routing/internal/auth"
	"github.com/spec-kit/ticket-routing/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Staff          *handlers.StaffHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Users.Register)
	authGroup.Post("/customers/login", cfg.Users.Login)
	authGroup.Post("/staff/login", cfg.Staff.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/unassigned", auth.RequireStaff(), cfg.StaffTickets.ListUnassigned)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.SetStatus)
	tickets.Post("/:id/assign", auth.RequireStaff(), cfg.StaffTickets.Assign)
	tickets.Get("/:id/history", auth.RequireStaff(), cfg.Tickets.ListHistory)
	tickets.Get("/:id/replies", cfg.Tickets.ListReplies)
	tickets.Post("/:id/replies", cfg.Tickets.AddReply)
	tickets.Post("/:id/rating", auth.RequireRole(domain.RoleCustomer), cfg.Tickets.SubmitRating)
	tickets.Post("/:id/remove", auth.RequireStaff(), cfg.Tickets.RemoveFromView)

	agents := app.Group("/agents", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	agents.Get("/:id/ratings", cfg.Staff.AgentRatings)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Post("/agents", cfg.Staff.CreateAgent)
	admin.Get("/agents", cfg.Staff.ListAgents)
	admin.Patch("/agents/:id/type", cfg.Staff.SetAgentType)
	admin.Delete("/agents/:id", cfg.Staff.DeleteAgent)
	admin.Post("/maintenance/fix-assignments", cfg.StaffTickets.FixAssignments)
	admin.Get("/metrics", cfg.Staff.Metrics)
}
