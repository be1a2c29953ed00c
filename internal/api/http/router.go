package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/booking-service/internal/api/http/handlers"
	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Calendar       *handlers.CalendarHandler
	Slots          *handlers.SlotsHandler
	Appointments   *handlers.AppointmentsHandler
	Directory      *handlers.DirectoryHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	api.Post("/auth/register", cfg.Auth.Register)
	api.Post("/auth/login", cfg.Auth.Login)
	api.Get("/users/admins", cfg.Auth.ListAdmins)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/calendar", auth.RequireAnyRole(), cfg.Calendar.Mine)
	protected.Get("/calendar/:userId", auth.RequireRole(domain.RoleAdmin), cfg.Calendar.ForUser)

	client := protected.Group("/client", auth.RequireRole(domain.RoleClient))
	client.Post("/slots/request", cfg.Slots.Request)
	client.Get("/appointments", cfg.Appointments.ClientList)

	operator := protected.Group("/operator", auth.RequireRole(domain.RoleOperator))
	operator.Get("/appointments", cfg.Appointments.OperatorList)

	admin := protected.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Get("/slots/pending", cfg.Slots.ListPending)
	admin.Post("/slots", cfg.Slots.Create)
	admin.Put("/slots/:id/approve", cfg.Slots.Approve)
	admin.Put("/slots/:id/reject", cfg.Slots.Reject)
	admin.Put("/slots/:id/active", cfg.Slots.SetActive)
	admin.Delete("/slots/:id", cfg.Slots.Delete)

	admin.Get("/appointments", cfg.Appointments.List)
	admin.Post("/appointments", cfg.Appointments.Create)
	admin.Get("/appointments/:id", cfg.Appointments.Get)
	admin.Put("/appointments/:id", cfg.Appointments.Update)
	admin.Delete("/appointments/:id", cfg.Appointments.Delete)

	admin.Get("/operators", cfg.Directory.ListOperators)
	admin.Post("/operators", cfg.Directory.CreateOperator)
	admin.Put("/operators/:id", cfg.Directory.UpdateOperator)
	admin.Delete("/operators/:id", cfg.Directory.DeleteOperator)
	admin.Get("/clients", cfg.Directory.ListClients)
	admin.Post("/clients", cfg.Directory.CreateClient)

	admin.Get("/stats", cfg.Appointments.Stats)
	admin.Post("/send-reminders", cfg.Appointments.SendReminders)
	admin.Post("/notify", cfg.Directory.Notify)
}
