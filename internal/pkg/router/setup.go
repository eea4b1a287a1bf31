package router

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/projecthub/app/controllers"
	"github.com/ManuelReschke/projecthub/internal/pkg/middleware"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the handlers and middleware dependencies of all routes.
type Deps struct {
	Authn    middleware.Authenticator
	Projects middleware.ProjectGuard

	Auth    *controllers.AuthController
	OAuth   *controllers.OAuthController
	Users   *controllers.UserController
	Tokens  *controllers.TokenController
	Project *controllers.ProjectController

	// Limiter stores rate limit counters; nil keeps them in memory.
	Limiter      fiber.Storage
	LimiterMax   int
	HealthChecks map[string]HealthCheck

	// OpenAPI is the path of the v1 API document; empty disables /docs/api/v1.
	OpenAPI string
}

func InstallRouter(app *fiber.App, deps Deps) {
	// Service routes first so /health and /metrics bypass the API limiter
	setup(app, NewServiceRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
