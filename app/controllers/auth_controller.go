package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/auth"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/middleware"
	"github.com/ManuelReschke/projecthub/internal/pkg/security"
)

// AuthController issues session tokens.
type AuthController struct {
	repos  *repository.Repositories
	signer *security.SessionSigner
	authn  middleware.Authenticator
	now    func() time.Time
}

func NewAuthController(repos *repository.Repositories, signer *security.SessionSigner, authn middleware.Authenticator) *AuthController {
	return &AuthController{repos: repos, signer: signer, authn: authn, now: time.Now}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=6"`
}

type exchangeRequest struct {
	Scope string `json:"scope" validate:"max=50"`
	TTL   int    `json:"ttl" validate:"min=0"`
}

// HandleLogin checks email and password and returns a session token.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()

	// notice: do not tell the client whether the email exists
	user, err := ac.repos.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.Fail(c, autherr.ErrUnauthenticated)
		}
		return err
	}
	if !user.CheckPassword(req.Password) {
		return middleware.Fail(c, autherr.ErrUnauthenticated)
	}
	if !user.IsActive() {
		return middleware.Fail(c, autherr.ErrInactiveUser)
	}

	if err := ac.repos.User.TouchLastLogin(ctx, user.ID, ac.now()); err != nil {
		logger.FromFiber(c).Warn("Failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return ac.respondWithSession(c, user.ID, security.IssueOptions{})
}

// HandleRegister creates a user with a personal account.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()

	user, err := models.CreateUser(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid user data")
	}
	if err := ac.repos.User.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "email already registered")
		}
		return err
	}
	acc, err := ensurePersonalAccount(ctx, ac.repos.Account, user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"account": acc.Name,
	})
}

// HandleExchange swaps a personal access token for a short lived session
// token bound to the token row. The session inherits the token's scope.
func (ac *AuthController) HandleExchange(c *fiber.Ctx) error {
	var req exchangeRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return err
		}
	}

	p, err := ac.authn.Authenticate(c.UserContext(), middleware.ExtractCredential(c), strings.TrimSpace(req.Scope))
	if err != nil {
		return middleware.Fail(c, err)
	}
	if p.Method != auth.MethodPersonalToken || p.TokenID == nil {
		return fiber.NewError(fiber.StatusBadRequest, "a personal access token is required")
	}

	return ac.respondWithSession(c, p.UserID(), security.IssueOptions{
		Scope:   p.Scope,
		TokenID: p.TokenID,
		TTL:     time.Duration(req.TTL) * time.Second,
	})
}

func (ac *AuthController) respondWithSession(c *fiber.Ctx, userID uint, opts security.IssueOptions) error {
	token, expires, err := ac.signer.Issue(userID, opts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expires.UTC().Format(time.RFC3339),
		"scope":      opts.Scope,
	})
}
