// Package guard enforces authentication, scope, project access and plan
// limits for request handlers.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/access"
	"github.com/ManuelReschke/projecthub/internal/pkg/auth"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/entitlements"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/metrics"
)

// Verifier resolves raw credentials.
type Verifier interface {
	Verify(ctx context.Context, raw, requiredScope string) (*auth.Principal, error)
}

// Resolver computes project access.
type Resolver interface {
	Resolve(ctx context.Context, user *models.User, project *models.Project) (access.Grant, error)
}

// Entitlements answers subscription questions.
type Entitlements interface {
	ForUser(ctx context.Context, user *models.User) (bool, error)
	ForOwner(ctx context.Context, owner models.AccountOwner, email string) (*models.Subscription, bool, error)
}

// Guard combines the verifier, the access resolver and the subscription
// gate into the checks handlers call.
type Guard struct {
	verifier     Verifier
	resolver     Resolver
	entitlements Entitlements
	repos        *repository.Repositories
}

func New(verifier Verifier, resolver Resolver, ent Entitlements, repos *repository.Repositories) *Guard {
	return &Guard{
		verifier:     verifier,
		resolver:     resolver,
		entitlements: ent,
		repos:        repos,
	}
}

// Authenticate verifies raw for a request declaring scope.
func (g *Guard) Authenticate(ctx context.Context, raw, scope string) (*auth.Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, autherr.ErrUnauthenticated
	}
	return g.verifier.Verify(ctx, raw, scope)
}

// RequireScope rejects credentials whose scope differs from declared, in
// either direction.
func (g *Guard) RequireScope(p *auth.Principal, declared string) error {
	if p == nil {
		return autherr.ErrUnauthenticated
	}
	if p.Scope != declared {
		return autherr.ErrInvalidScope
	}
	return nil
}

// Require loads the project and checks that p holds at least min on it. A
// nil principal is anonymous. Missing projects fail before any access
// decision is made.
func (g *Guard) Require(ctx context.Context, p *auth.Principal, projectID uint, min models.AccessLevel) (access.Grant, error) {
	project, err := g.repos.Project.GetByID(ctx, projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return access.Grant{}, autherr.ErrResourceNotFound
	}
	if err != nil {
		return access.Grant{}, fmt.Errorf("load project %d: %w", projectID, err)
	}
	return g.RequireProject(ctx, p, project, min)
}

// RequireProject checks access on an already loaded project.
func (g *Guard) RequireProject(ctx context.Context, p *auth.Principal, project *models.Project, min models.AccessLevel) (access.Grant, error) {
	var user *models.User
	if p != nil {
		user = p.User
	}
	grant, err := g.resolver.Resolve(ctx, user, project)
	if err != nil {
		return access.Grant{}, err
	}
	if !grant.Allows(min) {
		metrics.AccessDecisions.WithLabelValues(string(min), "denied").Inc()
		logger.FromContext(ctx).Debug("Project access denied",
			zap.Uint("project_id", project.ID),
			zap.Uint("user_id", p.UserID()),
			zap.String("level", grant.Level.String()),
			zap.String("required", min.String()))
		return access.Grant{}, autherr.ErrForbidden
	}
	metrics.AccessDecisions.WithLabelValues(string(min), "granted").Inc()
	return grant, nil
}

// RequireEntitled fails with ErrPaymentRequired unless the principal's own
// subscription is currently entitled.
func (g *Guard) RequireEntitled(ctx context.Context, p *auth.Principal) error {
	if p == nil || p.User == nil {
		return autherr.ErrUnauthenticated
	}
	ok, err := g.entitlements.ForUser(ctx, p.User)
	if err != nil {
		return err
	}
	if !ok {
		return autherr.ErrPaymentRequired
	}
	return nil
}

// RequireAccountAdmin checks that p may create projects in account: its
// owning user, or an org member with at least admin.
func (g *Guard) RequireAccountAdmin(ctx context.Context, p *auth.Principal, account *models.Account) error {
	if p == nil || p.User == nil {
		return autherr.ErrUnauthenticated
	}
	owner := account.Owner()
	switch owner.Kind() {
	case models.OwnerUser:
		if id, _ := owner.UserID(); id == p.User.ID {
			return nil
		}
	case models.OwnerOrganization:
		orgID, _ := owner.OrganizationID()
		m, err := g.repos.Organization.GetMembership(ctx, p.User.ID, orgID)
		if err == nil && m.Role.AtLeast(models.AccessAdmin) {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load membership: %w", err)
		}
	}
	return autherr.ErrForbidden
}

// CheckProjectQuota fails with ErrPaymentRequired when account has used up
// the private projects of its effective plan. Public projects are free.
func (g *Guard) CheckProjectQuota(ctx context.Context, account *models.Account, public bool) error {
	if public {
		return nil
	}
	limits, err := g.limits(ctx, account)
	if err != nil {
		return err
	}
	n, err := g.repos.Project.CountPrivateByAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	if !entitlements.Allows(limits.MaxPrivateProjects, n) {
		return fmt.Errorf("%w: private project limit of %d reached", autherr.ErrPaymentRequired, limits.MaxPrivateProjects)
	}
	return nil
}

// CheckCollaboratorQuota fails with ErrPaymentRequired when a project
// cannot take another collaborator under its account's plan.
func (g *Guard) CheckCollaboratorQuota(ctx context.Context, project *models.Project) error {
	account, err := g.repos.Account.GetByID(ctx, project.AccountID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", project.AccountID, err)
	}
	limits, err := g.limits(ctx, account)
	if err != nil {
		return err
	}
	n, err := g.repos.Project.CountCollaborators(ctx, project.ID)
	if err != nil {
		return err
	}
	if !entitlements.Allows(limits.MaxCollaborators, n) {
		return fmt.Errorf("%w: collaborator limit of %d reached", autherr.ErrPaymentRequired, limits.MaxCollaborators)
	}
	return nil
}

func (g *Guard) limits(ctx context.Context, account *models.Account) (entitlements.Limits, error) {
	owner := account.Owner()
	email, err := g.billingEmail(ctx, owner)
	if err != nil {
		return entitlements.Limits{}, err
	}
	sub, ok, err := g.entitlements.ForOwner(ctx, owner, email)
	if err != nil {
		return entitlements.Limits{}, err
	}
	return entitlements.Effective(sub, ok), nil
}

func (g *Guard) billingEmail(ctx context.Context, owner models.AccountOwner) (string, error) {
	switch owner.Kind() {
	case models.OwnerUser:
		id, _ := owner.UserID()
		u, err := g.repos.User.GetByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load account user: %w", err)
		}
		return u.Email, nil
	case models.OwnerOrganization:
		id, _ := owner.OrganizationID()
		o, err := g.repos.Organization.GetByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load account organization: %w", err)
		}
		return o.BillingEmail, nil
	default:
		return "", models.ErrAccountOwner
	}
}
