package http

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/service-portal/internal/api/http/handlers"
	"github.com/spec-kit/service-portal/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Auth            *handlers.AuthHandler
	Outlets         *handlers.OutletsHandler
	Tickets         *handlers.EntitiesHandler
	ServiceRequests *handlers.EntitiesHandler
	AuthMiddleware  *auth.AuthMiddleware
	Metrics         http.Handler
	UploadDir       string
	UploadPrefix    string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}
	if cfg.UploadDir != "" {
		app.Static("/"+strings.Trim(cfg.UploadPrefix, "/"), cfg.UploadDir)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	api.Get("/me", cfg.Auth.Me)
	api.Get("/outlets", cfg.Outlets.List)
	api.Post("/outlets", cfg.Outlets.Create)

	registerEntityRoutes(api.Group("/tickets"), cfg.Tickets)
	registerEntityRoutes(api.Group("/service-requests"), cfg.ServiceRequests)
}

func registerEntityRoutes(group fiber.Router, h *handlers.EntitiesHandler) {
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Get("/:id", h.Get)
	group.Patch("/:id/status", auth.RequireAdmin(), h.UpdateStatus)
	group.Post("/:id/replies", h.AddReply)
	group.Delete("/:id", h.Delete)
}
