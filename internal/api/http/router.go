package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Tasks  *handlers.TasksHandler
	Gate   *auth.Gate
}

// RegisterRoutes wires HTTP routes. Every protected route passes the gate
// before its handler: Authenticate resolves the bearer token, Authorize
// runs the ownership decision for the named operation.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	authProtected := authGroup.Group("", cfg.Gate.Authenticate)
	authProtected.Post("/logout", cfg.Auth.Logout)
	authProtected.Post("/password/change", cfg.Auth.ChangePassword)

	tasks := app.Group("/tasks", cfg.Gate.Authenticate)
	tasks.Post("", cfg.Gate.Authorize(auth.OpTaskCreate), cfg.Tasks.Create)
	tasks.Get("", cfg.Gate.Authorize(auth.OpTaskList), cfg.Tasks.List)
	tasks.Get("/:id", cfg.Gate.Authorize(auth.OpTaskRead), cfg.Tasks.Get)
	tasks.Patch("/:id", cfg.Gate.Authorize(auth.OpTaskUpdate), cfg.Tasks.Update)
	tasks.Delete("/:id", cfg.Gate.Authorize(auth.OpTaskDelete), cfg.Tasks.Delete)

	admin := app.Group("/admin", cfg.Gate.Authenticate, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/tasks", cfg.Tasks.AdminList)
}
