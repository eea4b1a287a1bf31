package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/access"
	"github.com/ManuelReschke/projecthub/internal/pkg/auth"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/usercontext"
)

// Authenticator resolves request credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, raw, scope string) (*auth.Principal, error)
}

// ProjectGuard checks project access.
type ProjectGuard interface {
	Require(ctx context.Context, p *auth.Principal, projectID uint, min models.AccessLevel) (access.Grant, error)
}

// RequireAuth rejects requests without a valid credential for scope.
func RequireAuth(a Authenticator, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := a.Authenticate(c.UserContext(), ExtractCredential(c), scope)
		if err != nil {
			return Fail(c, err)
		}
		usercontext.SetPrincipal(c, p)
		return c.Next()
	}
}

// OptionalAuth lets anonymous requests through. A credential that is present
// must still be valid.
func OptionalAuth(a Authenticator, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := ExtractCredential(c)
		if raw == "" {
			return c.Next()
		}
		p, err := a.Authenticate(c.UserContext(), raw, scope)
		if err != nil {
			return Fail(c, err)
		}
		usercontext.SetPrincipal(c, p)
		return c.Next()
	}
}

// RequireProjectAccess resolves the project named by the route parameter
// and stores the grant for the handler.
func RequireProjectAccess(g ProjectGuard, param string, min models.AccessLevel) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params(param), 10, 64)
		if err != nil || id == 0 {
			// Non numeric ids cannot exist
			return Fail(c, autherr.ErrResourceNotFound)
		}
		grant, err := g.Require(c.UserContext(), usercontext.GetPrincipal(c), uint(id), min)
		if err != nil {
			return Fail(c, err)
		}
		usercontext.SetGrant(c, grant)
		return c.Next()
	}
}

// RequireAdmin allows site administrators only.
func RequireAdmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return Fail(c, autherr.ErrUnauthenticated)
	}
	if !usercontext.IsAdmin(c) {
		return Fail(c, autherr.ErrForbidden)
	}
	return c.Next()
}

// ExtractCredential reads the credential from X-API-Key, falling back to a
// bearer Authorization header.
func ExtractCredential(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	header := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
