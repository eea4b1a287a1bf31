package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Plan ids. Higher ids grant more; PlanFree is always valid.
const (
	PlanFree         = 0
	PlanStandard     = 1
	PlanProfessional = 2
)

// ErrSubscriptionOwner is returned when a subscription does not reference
// exactly one of a user or an organization.
var ErrSubscriptionOwner = errors.New("subscription must belong to exactly one user or organization")

// Subscription is the locally cached entitlement of a user or organization.
// Exactly one of UserID and OrgID is set. A nil PaidUntil on a paid plan means
// payment has not been confirmed yet.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               *uint      `gorm:"uniqueIndex" json:"user_id,omitempty"`
	OrgID                *uint      `gorm:"uniqueIndex" json:"org_id,omitempty"`
	PlanID               int        `gorm:"not null;default:0" json:"plan_id"`
	PaidUntil            *time.Time `gorm:"type:timestamp;default:null" json:"paid_until,omitempty"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:''" json:"-"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"-"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave rejects rows violating the single-holder invariant.
func (s *Subscription) BeforeSave(tx *gorm.DB) error {
	if _, err := resolveOwner(s.UserID, s.OrgID); err != nil {
		return ErrSubscriptionOwner
	}
	return nil
}

// IsFree reports whether the subscription is on the free tier.
func (s *Subscription) IsFree() bool {
	return s.PlanID == PlanFree
}

// IsPaidThrough reports whether the paid window is still open at now.
func (s *Subscription) IsPaidThrough(now time.Time) bool {
	return s.PaidUntil != nil && s.PaidUntil.After(now)
}

// NeedsReconcile reports whether a paid subscription's payment window has
// lapsed: either paid_until already passed, or it was never set and more than
// grace has elapsed since the subscription was created.
func (s *Subscription) NeedsReconcile(now time.Time, grace time.Duration) bool {
	if s == nil || s.IsFree() {
		return false
	}
	if s.PaidUntil == nil {
		return now.Sub(s.CreatedAt) > grace
	}
	return !s.PaidUntil.After(now)
}
