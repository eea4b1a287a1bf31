package github

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/database"
)

// Repository persists linked GitHub accounts.
type Repository interface {
	Get(ctx context.Context, id uint) (*models.ProviderAccount, error)
	FindByUser(ctx context.Context, userID uint) (*models.ProviderAccount, error)
	FindByProviderUserID(ctx context.Context, providerUserID string) (*models.ProviderAccount, error)
	Upsert(ctx context.Context, account *models.ProviderAccount) error
	// LockAndUpdate locks the row without waiting and saves it when fn
	// returns true. It returns database.ErrLockUnavailable when the row is
	// held by another transaction.
	LockAndUpdate(ctx context.Context, id uint, fn func(account *models.ProviderAccount) (bool, error)) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a provider account repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(ctx context.Context, id uint) (*models.ProviderAccount, error) {
	var pa models.ProviderAccount
	if err := r.db.WithContext(ctx).First(&pa, id).Error; err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *gormRepository) FindByUser(ctx context.Context, userID uint) (*models.ProviderAccount, error) {
	var pa models.ProviderAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, models.ProviderGitHub).
		First(&pa).Error
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *gormRepository) FindByProviderUserID(ctx context.Context, providerUserID string) (*models.ProviderAccount, error) {
	var pa models.ProviderAccount
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", models.ProviderGitHub, providerUserID).
		First(&pa).Error
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *gormRepository) Upsert(ctx context.Context, account *models.ProviderAccount) error {
	account.Provider = models.ProviderGitHub
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"login",
			"access_token",
			"refresh_token",
			"expires_at",
			"refresh_token_expires_at",
			"updated_at",
		}),
	}).Create(account).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", account.Provider, account.ProviderUserID).
		First(account).Error
}

func (r *gormRepository) LockAndUpdate(ctx context.Context, id uint, fn func(account *models.ProviderAccount) (bool, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pa models.ProviderAccount
		if err := tx.Clauses(database.ForUpdateNoWait()).First(&pa, id).Error; err != nil {
			if database.IsLockUnavailable(err) {
				return database.ErrLockUnavailable
			}
			return err
		}
		save, err := fn(&pa)
		if err != nil || !save {
			return err
		}
		return tx.Save(&pa).Error
	})
}
