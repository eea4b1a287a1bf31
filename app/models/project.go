package models

import "time"

// Project is owned by exactly one account. Ownership is resolved through the
// account, never through a direct user or organization reference.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(150);not null;index:ux_projects_account_name,unique,priority:2" json:"name" validate:"required,min=1,max=150"`
	Description string    `gorm:"type:text" json:"description" validate:"max=2000"`
	AccountID   uint      `gorm:"not null;index:ux_projects_account_name,unique,priority:1" json:"account_id"`
	Public      bool      `gorm:"default:false;index" json:"public"`
	ParentID    *uint     `gorm:"index" json:"parent_id,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProjectAccess is an explicit per-user grant on a project. A NULL Access
// means the grant was explicitly cleared.
type ProjectAccess struct {
	UserID    uint         `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ProjectID uint         `gorm:"primaryKey;autoIncrement:false;index" json:"project_id"`
	Access    *AccessLevel `gorm:"type:varchar(16);default:null" json:"access"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// Level returns the granted level, AccessNone when cleared.
func (pa *ProjectAccess) Level() AccessLevel {
	if pa == nil || pa.Access == nil {
		return AccessNone
	}
	return *pa.Access
}
