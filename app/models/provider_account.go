package models

import "time"

const ProviderGitHub = "github"

// ProviderAccount stores external OAuth provider identities linked to a user
type ProviderAccount struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"index:ux_provider_accounts_user_provider,unique" json:"user_id"`
	Provider              string     `gorm:"index:provider_uid,unique;index:ux_provider_accounts_user_provider,unique;type:varchar(50)" json:"provider"`
	ProviderUserID        string     `gorm:"index:provider_uid,unique;type:varchar(191)" json:"provider_user_id"`
	Login                 string     `gorm:"type:varchar(191);default:''" json:"login"`
	AccessToken           string     `gorm:"type:text" json:"-"`
	RefreshToken          string     `gorm:"type:text" json:"-"`
	ExpiresAt             *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	RefreshTokenExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"refresh_token_expires_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// AccessTokenValid reports whether the access token stays usable for at least
// skew beyond now. Tokens without expiry are treated as valid.
func (p *ProviderAccount) AccessTokenValid(now time.Time, skew time.Duration) bool {
	if p.AccessToken == "" {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now.Add(skew))
}

// CanRefresh reports whether the stored refresh token may still be used.
func (p *ProviderAccount) CanRefresh(now time.Time) bool {
	if p.RefreshToken == "" {
		return false
	}
	return p.RefreshTokenExpiresAt == nil || p.RefreshTokenExpiresAt.After(now)
}
