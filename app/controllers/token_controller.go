package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/tokens"
	"github.com/ManuelReschke/projecthub/internal/pkg/usercontext"
)

// TokenController manages the personal access tokens of the current user.
type TokenController struct {
	svc       *tokens.Service
	retention time.Duration
	now       func() time.Time
}

// NewTokenController creates the controller. retention is how long expired
// tokens are kept before a purge removes them.
func NewTokenController(svc *tokens.Service, retention time.Duration) *TokenController {
	return &TokenController{svc: svc, retention: retention, now: time.Now}
}

type createTokenRequest struct {
	Name      string `json:"name" validate:"max=100"`
	Scope     string `json:"scope" validate:"omitempty,max=50,alphanum"`
	ExpiresIn int64  `json:"expires_in" validate:"min=0"`
}

func (tc *TokenController) tokenJSON(t *models.AccessToken) fiber.Map {
	return fiber.Map{
		"id":             t.ID,
		"name":           t.Name,
		"selector":       t.Selector,
		"scope":          t.Scope,
		"state":          t.State(tc.now()),
		"expires":        formatTimePtr(t.Expires),
		"deactivated_at": formatTimePtr(t.DeactivatedAt),
		"last_used":      formatTimePtr(t.LastUsed),
		"created_at":     t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleList returns the user's tokens without secrets.
func (tc *TokenController) HandleList(c *fiber.Ctx) error {
	list, err := tc.svc.List(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, tc.tokenJSON(&list[i]))
	}
	return c.JSON(fiber.Map{"tokens": out})
}

// HandleCreate issues a token. The raw value is only part of this response.
func (tc *TokenController) HandleCreate(c *fiber.Ctx) error {
	var req createTokenRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	issued, err := tc.svc.Issue(c.UserContext(), tokens.IssueRequest{
		UserID: usercontext.GetUserID(c),
		Name:   req.Name,
		Scope:  req.Scope,
		TTL:    time.Duration(req.ExpiresIn) * time.Second,
	})
	if errors.Is(err, tokens.ErrInvalidTokenRequest) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	if err != nil {
		return err
	}

	body := tc.tokenJSON(issued.Token)
	body["token"] = issued.Raw
	return c.Status(fiber.StatusCreated).JSON(body)
}

// HandleDeactivate turns a token off for good.
func (tc *TokenController) HandleDeactivate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := tc.svc.Deactivate(c.UserContext(), usercontext.GetUserID(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleDelete removes a token.
func (tc *TokenController) HandleDelete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := tc.svc.Delete(c.UserContext(), usercontext.GetUserID(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandlePurge removes tokens that expired longer than the retention ago.
func (tc *TokenController) HandlePurge(c *fiber.Ctx) error {
	n, err := tc.svc.PurgeExpired(c.UserContext(), tc.retention)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"purged": n})
}
