package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// OwnerKind discriminates the two account flavours.
type OwnerKind int

const (
	OwnerUnknown OwnerKind = iota
	OwnerUser
	OwnerOrganization
)

// ErrAccountOwner is returned when an account does not reference exactly one
// of a user or an organization.
var ErrAccountOwner = errors.New("account must belong to exactly one user or organization")

// AccountOwner is the resolved owner of an account: either a user or an
// organization, never both.
type AccountOwner struct {
	kind OwnerKind
	id   uint
}

func UserOwner(userID uint) AccountOwner { return AccountOwner{kind: OwnerUser, id: userID} }

func OrganizationOwner(orgID uint) AccountOwner {
	return AccountOwner{kind: OwnerOrganization, id: orgID}
}

func (o AccountOwner) Kind() OwnerKind { return o.kind }

// UserID returns the owning user id when the account is individual.
func (o AccountOwner) UserID() (uint, bool) {
	return o.id, o.kind == OwnerUser
}

// OrganizationID returns the owning organization id when the account is
// organizational.
func (o AccountOwner) OrganizationID() (uint, bool) {
	return o.id, o.kind == OwnerOrganization
}

// Account is the namespace that owns projects.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name" validate:"required,min=2,max=100"`
	UserID    *uint     `gorm:"uniqueIndex" json:"user_id,omitempty"`
	OrgID     *uint     `gorm:"uniqueIndex" json:"org_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	owner AccountOwner `gorm:"-"`
}

// NewUserAccount creates the personal account of a user.
func NewUserAccount(name string, userID uint) (*Account, error) {
	if userID == 0 {
		return nil, ErrAccountOwner
	}
	a := &Account{Name: name, UserID: &userID}
	a.owner = UserOwner(userID)
	return a, nil
}

// NewOrgAccount creates the account of an organization.
func NewOrgAccount(name string, orgID uint) (*Account, error) {
	if orgID == 0 {
		return nil, ErrAccountOwner
	}
	a := &Account{Name: name, OrgID: &orgID}
	a.owner = OrganizationOwner(orgID)
	return a, nil
}

func resolveOwner(userID, orgID *uint) (AccountOwner, error) {
	hasUser := userID != nil && *userID != 0
	hasOrg := orgID != nil && *orgID != 0
	switch {
	case hasUser && !hasOrg:
		return UserOwner(*userID), nil
	case hasOrg && !hasUser:
		return OrganizationOwner(*orgID), nil
	default:
		return AccountOwner{}, ErrAccountOwner
	}
}

// Owner returns the owner computed when the account was constructed or loaded.
func (a *Account) Owner() AccountOwner {
	return a.owner
}

// BeforeSave rejects rows violating the single-owner invariant.
func (a *Account) BeforeSave(tx *gorm.DB) error {
	owner, err := resolveOwner(a.UserID, a.OrgID)
	if err != nil {
		return err
	}
	a.owner = owner
	return nil
}

// AfterFind computes the owner once at load time.
func (a *Account) AfterFind(tx *gorm.DB) error {
	owner, err := resolveOwner(a.UserID, a.OrgID)
	if err != nil {
		return err
	}
	a.owner = owner
	return nil
}
