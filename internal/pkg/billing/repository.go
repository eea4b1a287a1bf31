package billing

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/database"
)

// Mutation tells LockAndApply what to persist for the locked row.
type Mutation int

const (
	MutationNone Mutation = iota
	MutationUpdate
	MutationDelete
)

// Repository provides DB operations used by the subscription gate.
type Repository interface {
	Get(ctx context.Context, id uint) (*models.Subscription, error)
	FindByUser(ctx context.Context, userID uint) (*models.Subscription, error)
	FindByOrganization(ctx context.Context, orgID uint) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	// LockAndApply locks the row without waiting, hands it to fn and persists
	// the requested mutation in the same transaction. It returns
	// database.ErrLockUnavailable when another transaction holds the row.
	LockAndApply(ctx context.Context, id uint, fn func(sub *models.Subscription) (Mutation, error)) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindByOrganization(ctx context.Context, orgID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *gormRepository) LockAndApply(ctx context.Context, id uint, fn func(sub *models.Subscription) (Mutation, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		err := tx.Clauses(database.ForUpdateNoWait()).First(&sub, id).Error
		if err != nil {
			if database.IsLockUnavailable(err) {
				return database.ErrLockUnavailable
			}
			return err
		}

		m, err := fn(&sub)
		if err != nil {
			return err
		}
		switch m {
		case MutationUpdate:
			return tx.Save(&sub).Error
		case MutationDelete:
			return tx.Delete(&sub).Error
		case MutationNone:
			return nil
		default:
			return errors.New("unknown subscription mutation")
		}
	})
}
