// Package access computes a user's permission on a project.
package access

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
)

// Grant pairs a project with the level resolved for one request. It is never
// stored on the project itself.
type Grant struct {
	Project *models.Project
	Level   models.AccessLevel
}

// Allows reports whether the grant satisfies min.
func (g Grant) Allows(min models.AccessLevel) bool {
	return g.Level.AtLeast(min)
}

// Resolver evaluates the access rules for a project.
type Resolver struct {
	accounts repository.AccountRepository
	orgs     repository.OrganizationRepository
	projects repository.ProjectRepository
}

func NewResolver(accounts repository.AccountRepository, orgs repository.OrganizationRepository, projects repository.ProjectRepository) *Resolver {
	return &Resolver{accounts: accounts, orgs: orgs, projects: projects}
}

// Resolve returns the access level of user on project. A nil user is
// anonymous. The first matching rule wins:
//
//  1. user owns the project's account: owner
//  2. account is an organization the user belongs to: membership role
//  3. explicit override row for (user, project): its value, possibly none
//  4. project is public: read
//  5. no access
func (r *Resolver) Resolve(ctx context.Context, user *models.User, project *models.Project) (Grant, error) {
	if project == nil {
		return Grant{}, errors.New("project is required")
	}
	grant := Grant{Project: project}

	if user != nil && user.ID != 0 {
		level, matched, err := r.resolveUser(ctx, user.ID, project)
		if err != nil {
			return Grant{}, err
		}
		if matched {
			grant.Level = level
			return grant, nil
		}
	}

	if project.Public {
		grant.Level = models.AccessRead
	}
	return grant, nil
}

func (r *Resolver) resolveUser(ctx context.Context, userID uint, project *models.Project) (models.AccessLevel, bool, error) {
	account, err := r.accounts.GetByID(ctx, project.AccountID)
	if err != nil {
		return models.AccessNone, false, fmt.Errorf("load account %d: %w", project.AccountID, err)
	}

	owner := account.Owner()
	switch owner.Kind() {
	case models.OwnerUser:
		if id, _ := owner.UserID(); id == userID {
			return models.AccessOwner, true, nil
		}
	case models.OwnerOrganization:
		orgID, _ := owner.OrganizationID()
		m, err := r.orgs.GetMembership(ctx, userID, orgID)
		if err == nil {
			return m.Role, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AccessNone, false, fmt.Errorf("load membership: %w", err)
		}
	}

	pa, err := r.projects.GetAccess(ctx, userID, project.ID)
	if err == nil {
		return pa.Level(), true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AccessNone, false, fmt.Errorf("load project access: %w", err)
	}
	return models.AccessNone, false, nil
}
