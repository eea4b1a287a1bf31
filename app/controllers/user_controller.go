package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/entitlements"
	"github.com/ManuelReschke/projecthub/internal/pkg/github"
	"github.com/ManuelReschke/projecthub/internal/pkg/usercontext"
	"github.com/ManuelReschke/projecthub/internal/pkg/utils"
)

// SubscriptionChecker answers whether an account owner is entitled.
type SubscriptionChecker interface {
	ForOwner(ctx context.Context, owner models.AccountOwner, email string) (*models.Subscription, bool, error)
}

// GitHubTokens hands out usable GitHub access tokens.
type GitHubTokens interface {
	AccessToken(ctx context.Context, userID uint) (string, error)
}

// GitHubProfiles loads GitHub profiles.
type GitHubProfiles interface {
	GetUser(ctx context.Context, accessToken string) (*github.User, error)
}

// UserController serves the current user's profile.
type UserController struct {
	repos    *repository.Repositories
	subs     SubscriptionChecker
	tokens   GitHubTokens
	profiles GitHubProfiles
}

func NewUserController(repos *repository.Repositories, subs SubscriptionChecker, tokens GitHubTokens, profiles GitHubProfiles) *UserController {
	return &UserController{repos: repos, subs: subs, tokens: tokens, profiles: profiles}
}

// HandleMe returns the user with plan and entitlement state.
func (uc *UserController) HandleMe(c *fiber.Ctx) error {
	ctx := c.UserContext()
	p := usercontext.GetPrincipal(c)
	user := p.User

	sub, entitled, err := uc.subs.ForOwner(ctx, models.UserOwner(user.ID), user.Email)
	if err != nil {
		return err
	}
	plan := entitlements.PlanFree
	if sub != nil {
		plan = entitlements.PlanFor(sub.PlanID)
	}
	limits := entitlements.Effective(sub, entitled)

	account, err := ensurePersonalAccount(ctx, uc.repos.Account, user)
	if err != nil {
		return err
	}

	var paidUntil interface{}
	if sub != nil {
		paidUntil = formatTimePtr(sub.PaidUntil)
	}

	return c.JSON(fiber.Map{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"role":          user.Role,
		"avatar_url":    utils.AvatarURL(user.AvatarURL, user.Email),
		"account":       account.Name,
		"auth_method":   p.Method,
		"scope":         p.Scope,
		"last_login_at": formatTimePtr(user.LastLoginAt),
		"subscription": fiber.Map{
			"plan":       plan,
			"entitled":   entitled,
			"paid_until": paidUntil,
		},
		"limits": fiber.Map{
			"max_private_projects": limits.MaxPrivateProjects,
			"max_collaborators":    limits.MaxCollaborators,
		},
	})
}

// HandleGitHub returns the linked GitHub profile, refreshing the stored
// token when needed.
func (uc *UserController) HandleGitHub(c *fiber.Ctx) error {
	ctx := c.UserContext()
	token, err := uc.tokens.AccessToken(ctx, usercontext.GetUserID(c))
	switch {
	case errors.Is(err, github.ErrNotLinked):
		return fiber.NewError(fiber.StatusNotFound, "no GitHub account linked")
	case errors.Is(err, github.ErrReauthRequired):
		return fiber.NewError(fiber.StatusConflict, "GitHub authorization expired, log in with GitHub again")
	case err != nil:
		return err
	}

	profile, err := uc.profiles.GetUser(ctx, token)
	if err != nil {
		var oe *github.OAuthError
		if errors.As(err, &oe) {
			return fiber.NewError(fiber.StatusConflict, "GitHub authorization expired, log in with GitHub again")
		}
		return err
	}
	return c.JSON(fiber.Map{
		"id":         profile.ID,
		"login":      profile.Login,
		"name":       profile.Name,
		"avatar_url": profile.AvatarURL,
	})
}
