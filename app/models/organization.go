package models

import "time"

// Organization groups users and owns projects through its account.
type Organization struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	BillingEmail string    `gorm:"type:varchar(200);default:''" json:"billing_email" validate:"omitempty,email"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Membership links a user to an organization with a role.
type Membership struct {
	UserID    uint        `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	OrgID     uint        `gorm:"primaryKey;autoIncrement:false;index" json:"org_id"`
	Role      AccessLevel `gorm:"type:varchar(16);not null;default:'read'" json:"role"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}
