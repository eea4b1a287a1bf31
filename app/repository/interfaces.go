package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
)

// Lookups return gorm.ErrRecordNotFound when no row matches, regardless of
// the backing implementation.

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// OrganizationRepository defines organization and membership operations
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uint) (*models.Organization, error)
	GetMembership(ctx context.Context, userID, orgID uint) (*models.Membership, error)
	UpsertMembership(ctx context.Context, m *models.Membership) error
	ListMemberships(ctx context.Context, userID uint) ([]models.Membership, error)
}

// AccountRepository defines account (namespace) operations
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByName(ctx context.Context, name string) (*models.Account, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Account, error)
	GetByOrgID(ctx context.Context, orgID uint) (*models.Account, error)
}

// ProjectRepository defines project and per-user access override operations
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uint) (*models.Project, error)
	CountPrivateByAccount(ctx context.Context, accountID uint) (int64, error)
	GetAccess(ctx context.Context, userID, projectID uint) (*models.ProjectAccess, error)
	SetAccess(ctx context.Context, access *models.ProjectAccess) error
	DeleteAccess(ctx context.Context, userID, projectID uint) error
	CountCollaborators(ctx context.Context, projectID uint) (int64, error)
}

// TokenRepository defines personal access token persistence keyed by selector
type TokenRepository interface {
	Create(ctx context.Context, token *models.AccessToken) error
	GetBySelector(ctx context.Context, selector string) (*models.AccessToken, error)
	GetByID(ctx context.Context, id uint) (*models.AccessToken, error)
	ListByUser(ctx context.Context, userID uint) ([]models.AccessToken, error)
	Deactivate(ctx context.Context, id, userID uint, at time.Time) error
	Delete(ctx context.Context, id, userID uint) error
	TouchLastUsed(ctx context.Context, id uint, at time.Time) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Organization OrganizationRepository
	Account      AccountRepository
	Project      ProjectRepository
	Token        TokenRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Organization: NewOrganizationRepository(db),
		Account:      NewAccountRepository(db),
		Project:      NewProjectRepository(db),
		Token:        NewTokenRepository(db),
	}
}
