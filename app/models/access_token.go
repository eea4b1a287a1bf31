package models

import "time"

// TokenState is the lifecycle state of a personal access token. Expired and
// deactivated are terminal.
type TokenState string

const (
	TokenStateActive      TokenState = "active"
	TokenStateExpired     TokenState = "expired"
	TokenStateDeactivated TokenState = "deactivated"
)

// AccessToken is a personal access token. The public selector is used for
// lookup; only a salted hash of the verifier is stored.
type AccessToken struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Name          string     `gorm:"type:varchar(100);not null;default:''" json:"name" validate:"max=100"`
	Selector      string     `gorm:"type:char(8);not null;uniqueIndex" json:"selector"`
	VerifierHash  string     `gorm:"type:varchar(100);not null;default:''" json:"-"`
	Scope         *string    `gorm:"type:varchar(50);default:null" json:"scope"`
	Expires       *time.Time `gorm:"type:timestamp;default:null;index" json:"expires,omitempty"`
	DeactivatedAt *time.Time `gorm:"type:timestamp;default:null" json:"deactivated_at,omitempty"`
	LastUsed      *time.Time `gorm:"type:timestamp;default:null" json:"last_used,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// IsDeactivated reports whether the token was explicitly revoked.
func (t *AccessToken) IsDeactivated() bool {
	return t.DeactivatedAt != nil
}

// IsExpired reports whether the token is past its expiry. Tokens without an
// expiry never expire.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return t.Expires != nil && !now.Before(*t.Expires)
}

// State returns the lifecycle state at now. Deactivation wins over expiry.
func (t *AccessToken) State(now time.Time) TokenState {
	switch {
	case t.IsDeactivated():
		return TokenStateDeactivated
	case t.IsExpired(now):
		return TokenStateExpired
	default:
		return TokenStateActive
	}
}

// ScopeValue returns the stored scope or the empty string.
func (t *AccessToken) ScopeValue() string {
	if t.Scope == nil {
		return ""
	}
	return *t.Scope
}
