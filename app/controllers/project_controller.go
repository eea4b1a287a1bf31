package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/access"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/guard"
	"github.com/ManuelReschke/projecthub/internal/pkg/usercontext"
)

// ProjectController serves project and collaborator endpoints. Access
// checks on :id routes run in middleware.RequireProjectAccess.
type ProjectController struct {
	guard *guard.Guard
	repos *repository.Repositories
}

func NewProjectController(g *guard.Guard, repos *repository.Repositories) *ProjectController {
	return &ProjectController{guard: g, repos: repos}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=150"`
	Description string `json:"description" validate:"max=2000"`
	Account     string `json:"account" validate:"omitempty,min=2,max=100"`
	Public      bool   `json:"public"`
	ParentID    *uint  `json:"parent_id"`
}

type setAccessRequest struct {
	// Access is a level name; null stores an explicit "no access" override.
	Access *string `json:"access"`
}

func projectJSON(g access.Grant) fiber.Map {
	p := g.Project
	return fiber.Map{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"account_id":  p.AccountID,
		"public":      p.Public,
		"parent_id":   p.ParentID,
		"access":      g.Level,
	}
}

// HandleCreate creates a project in the caller's account or in a named
// account the caller administers.
func (pc *ProjectController) HandleCreate(c *fiber.Ctx) error {
	var req createProjectRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	principal := usercontext.GetPrincipal(c)

	var (
		account *models.Account
		err     error
	)
	if req.Account == "" {
		account, err = ensurePersonalAccount(ctx, pc.repos.Account, principal.User)
	} else {
		account, err = pc.repos.Account.GetByName(ctx, req.Account)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return autherr.ErrResourceNotFound
		}
	}
	if err != nil {
		return err
	}

	if err := pc.guard.RequireAccountAdmin(ctx, principal, account); err != nil {
		return err
	}

	if req.ParentID != nil {
		parent, err := pc.repos.Project.GetByID(ctx, *req.ParentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "parent project does not exist")
		}
		if err != nil {
			return err
		}
		if parent.AccountID != account.ID {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "parent project belongs to another account")
		}
	}

	if err := pc.guard.CheckProjectQuota(ctx, account, req.Public); err != nil {
		return err
	}

	project := &models.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		AccountID:   account.ID,
		Public:      req.Public,
		ParentID:    req.ParentID,
	}
	if err := pc.repos.Project.Create(ctx, project); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "project name already taken in this account")
		}
		return err
	}

	grant, err := pc.guard.RequireProject(ctx, principal, project, models.AccessRead)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(projectJSON(grant))
}

// HandleGet returns the project with the caller's access level.
func (pc *ProjectController) HandleGet(c *fiber.Ctx) error {
	grant, ok := usercontext.GetGrant(c)
	if !ok {
		return errors.New("project grant missing")
	}
	return c.JSON(projectJSON(grant))
}

// HandleSetAccess creates or replaces a per-user override.
func (pc *ProjectController) HandleSetAccess(c *fiber.Ctx) error {
	grant, ok := usercontext.GetGrant(c)
	if !ok {
		return errors.New("project grant missing")
	}
	userID, err := paramID(c, "userID")
	if err != nil {
		return err
	}
	var req setAccessRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()

	var level *models.AccessLevel
	if req.Access != nil {
		l, err := models.ParseAccessLevel(*req.Access)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		// Only owners hand out owner access
		if l == models.AccessOwner && grant.Level != models.AccessOwner {
			return autherr.ErrForbidden
		}
		level = &l
	}

	if _, err := pc.repos.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return autherr.ErrResourceNotFound
		}
		return err
	}

	existing, err := pc.repos.Project.GetAccess(ctx, userID, grant.Project.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		existing, err = nil, nil
	}
	if err != nil {
		return err
	}
	if err := requireOwnerFor(grant, existing); err != nil {
		return err
	}
	if level != nil && (existing == nil || existing.Access == nil) {
		if err := pc.guard.CheckCollaboratorQuota(ctx, grant.Project); err != nil {
			return err
		}
	}

	pa := &models.ProjectAccess{UserID: userID, ProjectID: grant.Project.ID, Access: level}
	if err := pc.repos.Project.SetAccess(ctx, pa); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"user_id":    pa.UserID,
		"project_id": pa.ProjectID,
		"access":     pa.Access,
	})
}

// HandleDeleteAccess removes a per-user override.
func (pc *ProjectController) HandleDeleteAccess(c *fiber.Ctx) error {
	grant, ok := usercontext.GetGrant(c)
	if !ok {
		return errors.New("project grant missing")
	}
	userID, err := paramID(c, "userID")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	existing, err := pc.repos.Project.GetAccess(ctx, userID, grant.Project.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return autherr.ErrResourceNotFound
	}
	if err != nil {
		return err
	}
	if err := requireOwnerFor(grant, existing); err != nil {
		return err
	}
	err = pc.repos.Project.DeleteAccess(ctx, userID, grant.Project.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return autherr.ErrResourceNotFound
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// requireOwnerFor refuses changes to an owner override unless the caller is
// an owner too.
func requireOwnerFor(grant access.Grant, existing *models.ProjectAccess) error {
	if existing == nil || existing.Access == nil || *existing.Access != models.AccessOwner {
		return nil
	}
	if grant.Level != models.AccessOwner {
		return autherr.ErrForbidden
	}
	return nil
}

// HandleDVCGet is the automation view of a project, reachable only with
// dvc scoped credentials.
func (pc *ProjectController) HandleDVCGet(c *fiber.Ctx) error {
	grant, ok := usercontext.GetGrant(c)
	if !ok {
		return errors.New("project grant missing")
	}
	return c.JSON(fiber.Map{
		"id":     grant.Project.ID,
		"name":   grant.Project.Name,
		"access": grant.Level,
		"write":  grant.Allows(models.AccessWrite),
	})
}
