package router

import (
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/metrics"
)

// ServiceRouter serves operational endpoints and the browser OAuth flow.
type ServiceRouter struct {
	deps Deps
}

func (h ServiceRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", h.health)
	app.Get("/metrics", metrics.Handler())

	// SWAGGER / OPENAPI
	if file := h.deps.OpenAPI; file != "" {
		if _, err := os.Stat(file); err != nil {
			logger.GetLogger().Warn("OpenAPI document not found, API docs disabled", zap.String("file", file), zap.Error(err))
		} else {
			app.Use(swagger.New(swagger.Config{
				BasePath: "/docs/api/",
				FilePath: file,
				Path:     "v1",
				Title:    "projecthub API",
			}))
		}
	}

	if h.deps.OAuth != nil {
		app.Get("/auth/:provider", h.deps.OAuth.HandleBegin)
		app.Get("/auth/:provider/callback", h.deps.OAuth.HandleCallback)
	}
}

func (h ServiceRouter) health(c *fiber.Ctx) error {
	checks := fiber.Map{}
	status := fiber.StatusOK
	for name, check := range h.deps.HealthChecks {
		if err := check(c.UserContext()); err != nil {
			checks[name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}
	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
}

func NewServiceRouter(deps Deps) *ServiceRouter {
	return &ServiceRouter{deps: deps}
}
