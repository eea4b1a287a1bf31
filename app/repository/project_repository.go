package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/projecthub/app/models"
)

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository instance
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPrivateByAccount counts private projects, used for plan limits
func (r *projectRepository) CountPrivateByAccount(ctx context.Context, accountID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("account_id = ? AND public = ?", accountID, false).
		Count(&n).Error
	return n, err
}

func (r *projectRepository) GetAccess(ctx context.Context, userID, projectID uint) (*models.ProjectAccess, error) {
	var pa models.ProjectAccess
	err := r.db.WithContext(ctx).Where("user_id = ? AND project_id = ?", userID, projectID).First(&pa).Error
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

// SetAccess creates or replaces the override row. A nil Access stores an
// explicit clear.
func (r *projectRepository) SetAccess(ctx context.Context, access *models.ProjectAccess) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access", "updated_at"}),
	}).Create(access).Error
}

func (r *projectRepository) DeleteAccess(ctx context.Context, userID, projectID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND project_id = ?", userID, projectID).Delete(&models.ProjectAccess{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountCollaborators counts override rows that grant access
func (r *projectRepository) CountCollaborators(ctx context.Context, projectID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ProjectAccess{}).
		Where("project_id = ? AND access IS NOT NULL", projectID).
		Count(&n).Error
	return n, err
}
