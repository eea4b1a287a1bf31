package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/github"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/security"
)

// OAuthController links GitHub identities and logs their users in.
type OAuthController struct {
	repos    *repository.Repositories
	accounts github.Repository
	signer   *security.SessionSigner
	complete func(c *fiber.Ctx) (goth.User, error)
	now      func() time.Time
}

func NewOAuthController(repos *repository.Repositories, accounts github.Repository, signer *security.SessionSigner) *OAuthController {
	return &OAuthController{
		repos:    repos,
		accounts: accounts,
		signer:   signer,
		complete: func(c *fiber.Ctx) (goth.User, error) { return gothfiber.CompleteUserAuth(c) },
		now:      time.Now,
	}
}

// HandleBegin redirects to the provider consent page.
func (oc *OAuthController) HandleBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleCallback completes the provider flow, stores the provider tokens and
// answers with a session token.
func (oc *OAuthController) HandleCallback(c *fiber.Ctx) error {
	u, err := oc.complete(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("OAuth failed: %v", err))
	}
	if u.Provider != models.ProviderGitHub {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported provider")
	}
	ctx := c.UserContext()
	now := oc.now()

	var appUser *models.User
	linked, err := oc.accounts.FindByProviderUserID(ctx, u.UserID)
	switch {
	case err == nil:
		appUser, err = oc.repos.User.GetByID(ctx, linked.UserID)
		if err != nil {
			return fmt.Errorf("linked user %d: %w", linked.UserID, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		appUser, err = oc.findOrCreateUser(c, u)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if !appUser.IsActive() {
		return fiber.NewError(fiber.StatusForbidden, "inactive user")
	}

	if _, err := github.Link(ctx, oc.accounts, appUser.ID, u.UserID, u.NickName, tokenResponseFrom(u, now), now); err != nil {
		return err
	}
	if _, err := ensurePersonalAccount(ctx, oc.repos.Account, appUser); err != nil {
		return err
	}
	if err := oc.repos.User.TouchLastLogin(ctx, appUser.ID, now); err != nil {
		logger.FromFiber(c).Warn("Failed to update last login", zap.Uint("user_id", appUser.ID), zap.Error(err))
	}

	token, expires, err := oc.signer.Issue(appUser.ID, security.IssueOptions{})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expires.UTC().Format(time.RFC3339),
		"user_id":    appUser.ID,
	})
}

func (oc *OAuthController) findOrCreateUser(c *fiber.Ctx, u goth.User) (*models.User, error) {
	ctx := c.UserContext()
	if u.Email != "" {
		existing, err := oc.repos.User.GetByEmail(ctx, u.Email)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	// Placeholder password, never used for login
	hash, err := models.HashPassword("oauth_" + uuid.NewString())
	if err != nil {
		return nil, err
	}
	email := u.Email
	if email == "" {
		email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
	}
	user := &models.User{
		Name:      strings.TrimSpace(firstNonEmpty(u.Name, u.NickName, u.Email, "User")),
		Email:     email,
		Password:  hash,
		AvatarURL: u.AvatarURL,
		Role:      models.ROLE_USER,
		Status:    models.STATUS_ACTIVE,
	}
	if err := oc.repos.User.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// tokenResponseFrom converts the goth session into the token endpoint shape.
func tokenResponseFrom(u goth.User, now time.Time) *github.TokenResponse {
	tr := &github.TokenResponse{
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
		TokenType:    "bearer",
	}
	if !u.ExpiresAt.IsZero() && u.ExpiresAt.After(now) {
		tr.ExpiresIn = int(u.ExpiresAt.Sub(now) / time.Second)
	}
	return tr
}
