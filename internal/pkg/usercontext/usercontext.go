package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/projecthub/internal/pkg/access"
	"github.com/ManuelReschke/projecthub/internal/pkg/auth"
)

// Locals keys shared by middlewares and controllers
const (
	KeyPrincipal = "principal"
	KeyGrant     = "grant"
)

// SetPrincipal stores the authenticated principal of the request
func SetPrincipal(c *fiber.Ctx, p *auth.Principal) {
	c.Locals(KeyPrincipal, p)
}

// GetPrincipal returns the principal, or nil for anonymous requests
func GetPrincipal(c *fiber.Ctx) *auth.Principal {
	if p, ok := c.Locals(KeyPrincipal).(*auth.Principal); ok {
		return p
	}
	return nil
}

// IsLoggedIn checks if the current request is authenticated
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetPrincipal(c) != nil
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	p := GetPrincipal(c)
	return p != nil && p.User != nil && p.User.IsAdmin()
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetPrincipal(c).UserID()
}

// SetGrant stores the project grant resolved for the request
func SetGrant(c *fiber.Ctx, g access.Grant) {
	c.Locals(KeyGrant, g)
}

// GetGrant returns the grant resolved by RequireProjectAccess
func GetGrant(c *fiber.Ctx) (access.Grant, bool) {
	g, ok := c.Locals(KeyGrant).(access.Grant)
	return g, ok
}
