package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
)

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new personal access token repository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Create inserts the token. A selector collision surfaces as
// gorm.ErrDuplicatedKey when the DB was opened with TranslateError.
func (r *tokenRepository) Create(ctx context.Context, token *models.AccessToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *tokenRepository) GetBySelector(ctx context.Context, selector string) (*models.AccessToken, error) {
	var t models.AccessToken
	if err := r.db.WithContext(ctx).Where("selector = ?", selector).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) GetByID(ctx context.Context, id uint) (*models.AccessToken, error) {
	var t models.AccessToken
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) ListByUser(ctx context.Context, userID uint) ([]models.AccessToken, error) {
	var out []models.AccessToken
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, err
}

// Deactivate marks a token inactive. Already deactivated tokens keep their
// original timestamp.
func (r *tokenRepository) Deactivate(ctx context.Context, id, userID uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("id = ? AND user_id = ?", id, userID).
		Where("deactivated_at IS NULL").
		UpdateColumn("deactivated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish "already inactive" from "not yours / missing"
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.AccessToken{}).
			Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *tokenRepository) Delete(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.AccessToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *tokenRepository) TouchLastUsed(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.AccessToken{}).Where("id = ?", id).UpdateColumn("last_used", at).Error
}

// PurgeExpired deletes tokens whose expiry lies before the cutoff
func (r *tokenRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires IS NOT NULL AND expires < ?", before).Delete(&models.AccessToken{})
	return res.RowsAffected, res.Error
}
