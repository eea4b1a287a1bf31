package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/middleware"
)

const defaultLimiterMax = 120

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limit := h.deps.LimiterMax
	if limit <= 0 {
		limit = defaultLimiterMax
	}
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        limit,
		Expiration: time.Minute,
		Storage:    h.deps.Limiter,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	d := h.deps
	authed := middleware.RequireAuth(d.Authn, "")

	v1.Post("/auth/login", d.Auth.HandleLogin)
	v1.Post("/auth/register", d.Auth.HandleRegister)
	v1.Post("/auth/token", d.Auth.HandleExchange)

	v1.Get("/user", authed, d.Users.HandleMe)
	v1.Get("/user/github", authed, d.Users.HandleGitHub)

	v1.Get("/tokens", authed, d.Tokens.HandleList)
	v1.Post("/tokens", authed, d.Tokens.HandleCreate)
	v1.Post("/tokens/:id/deactivate", authed, d.Tokens.HandleDeactivate)
	v1.Delete("/tokens/:id", authed, d.Tokens.HandleDelete)
	v1.Post("/admin/tokens/purge", authed, middleware.RequireAdmin, d.Tokens.HandlePurge)

	v1.Post("/projects", authed, d.Project.HandleCreate)
	v1.Get("/projects/:id", middleware.OptionalAuth(d.Authn, ""),
		middleware.RequireProjectAccess(d.Projects, "id", models.AccessRead), d.Project.HandleGet)
	v1.Put("/projects/:id/access/:userID", authed,
		middleware.RequireProjectAccess(d.Projects, "id", models.AccessAdmin), d.Project.HandleSetAccess)
	v1.Delete("/projects/:id/access/:userID", authed,
		middleware.RequireProjectAccess(d.Projects, "id", models.AccessAdmin), d.Project.HandleDeleteAccess)

	v1.Get("/dvc/projects/:id", middleware.RequireAuth(d.Authn, "dvc"),
		middleware.RequireProjectAccess(d.Projects, "id", models.AccessRead), d.Project.HandleDVCGet)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
