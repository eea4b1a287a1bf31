package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *accountRepository) GetByName(ctx context.Context, name string) (*models.Account, error) {
	return r.first(ctx, "name = ?", strings.TrimSpace(name))
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID uint) (*models.Account, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *accountRepository) GetByOrgID(ctx context.Context, orgID uint) (*models.Account, error) {
	return r.first(ctx, "org_id = ?", orgID)
}

func (r *accountRepository) first(ctx context.Context, query string, arg interface{}) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).Where(query, arg).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
