// Package memory provides map-backed repositories for tests and local tooling.
// Semantics mirror the gorm implementations, including gorm.ErrRecordNotFound
// and gorm.ErrDuplicatedKey.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
)

// Store bundles one instance of every in-memory repository
type Store struct {
	Users         *Users
	Organizations *Organizations
	Accounts      *Accounts
	Projects      *Projects
	Tokens        *Tokens
}

// New returns an empty store
func New() *Store {
	return &Store{
		Users:         &Users{rows: map[uint]models.User{}},
		Organizations: &Organizations{rows: map[uint]models.Organization{}, members: map[[2]uint]models.Membership{}},
		Accounts:      &Accounts{rows: map[uint]models.Account{}},
		Projects:      &Projects{rows: map[uint]models.Project{}, access: map[[2]uint]models.ProjectAccess{}},
		Tokens:        &Tokens{rows: map[uint]models.AccessToken{}},
	}
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:         s.Users,
		Organization: s.Organizations,
		Account:      s.Accounts,
		Project:      s.Projects,
		Token:        s.Tokens,
	}
}

// Users implements repository.UserRepository
type Users struct {
	mu     sync.Mutex
	rows   map[uint]models.User
	nextID uint
}

func (r *Users) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
	} else if user.ID > r.nextID {
		r.nextID = user.ID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.rows[user.ID] = *user
	return nil
}

func (r *Users) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *Users) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.rows[user.ID] = *user
	return nil
}

func (r *Users) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.LastLoginAt = &at
	r.rows[id] = u
	return nil
}

// Organizations implements repository.OrganizationRepository
type Organizations struct {
	mu      sync.Mutex
	rows    map[uint]models.Organization
	members map[[2]uint]models.Membership
	nextID  uint
}

func (r *Organizations) Create(_ context.Context, org *models.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org.ID == 0 {
		r.nextID++
		org.ID = r.nextID
	} else if org.ID > r.nextID {
		r.nextID = org.ID
	}
	r.rows[org.ID] = *org
	return nil
}

func (r *Organizations) GetByID(_ context.Context, id uint) (*models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *Organizations) GetMembership(_ context.Context, userID, orgID uint) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[[2]uint{userID, orgID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *Organizations) UpsertMembership(_ context.Context, m *models.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[[2]uint{m.UserID, m.OrgID}] = *m
	return nil
}

func (r *Organizations) ListMemberships(_ context.Context, userID uint) ([]models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Membership
	for k, m := range r.members {
		if k[0] == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out, nil
}

// Accounts implements repository.AccountRepository
type Accounts struct {
	mu     sync.Mutex
	rows   map[uint]models.Account
	nextID uint
}

func (r *Accounts) Create(_ context.Context, account *models.Account) error {
	// Run the same owner check the gorm hooks enforce
	if err := account.BeforeSave(nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.Name == account.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	if account.ID == 0 {
		r.nextID++
		account.ID = r.nextID
	} else if account.ID > r.nextID {
		r.nextID = account.ID
	}
	r.rows[account.ID] = *account
	return nil
}

func (r *Accounts) GetByID(_ context.Context, id uint) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.ID == id })
}

func (r *Accounts) GetByName(_ context.Context, name string) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.Name == strings.TrimSpace(name) })
}

func (r *Accounts) GetByUserID(_ context.Context, userID uint) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.UserID != nil && *a.UserID == userID })
}

func (r *Accounts) GetByOrgID(_ context.Context, orgID uint) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.OrgID != nil && *a.OrgID == orgID })
}

func (r *Accounts) find(match func(models.Account) bool) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if match(a) {
			found := a
			if err := found.AfterFind(nil); err != nil {
				return nil, err
			}
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// Projects implements repository.ProjectRepository
type Projects struct {
	mu     sync.Mutex
	rows   map[uint]models.Project
	access map[[2]uint]models.ProjectAccess
	nextID uint
}

func (r *Projects) Create(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.AccountID == project.AccountID && p.Name == project.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	if project.ID == 0 {
		r.nextID++
		project.ID = r.nextID
	} else if project.ID > r.nextID {
		r.nextID = project.ID
	}
	r.rows[project.ID] = *project
	return nil
}

func (r *Projects) GetByID(_ context.Context, id uint) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *Projects) CountPrivateByAccount(_ context.Context, accountID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		if p.AccountID == accountID && !p.Public {
			n++
		}
	}
	return n, nil
}

func (r *Projects) GetAccess(_ context.Context, userID, projectID uint) (*models.ProjectAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pa, ok := r.access[[2]uint{userID, projectID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &pa, nil
}

func (r *Projects) SetAccess(_ context.Context, access *models.ProjectAccess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.access[[2]uint{access.UserID, access.ProjectID}] = *access
	return nil
}

func (r *Projects) DeleteAccess(_ context.Context, userID, projectID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uint{userID, projectID}
	if _, ok := r.access[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.access, key)
	return nil
}

func (r *Projects) CountCollaborators(_ context.Context, projectID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, pa := range r.access {
		if k[1] == projectID && pa.Access != nil {
			n++
		}
	}
	return n, nil
}

// Tokens implements repository.TokenRepository
type Tokens struct {
	mu     sync.Mutex
	rows   map[uint]models.AccessToken
	nextID uint

	// Touches counts TouchLastUsed calls
	Touches int
}

func (r *Tokens) Create(_ context.Context, token *models.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.Selector == token.Selector {
			return gorm.ErrDuplicatedKey
		}
	}
	if token.ID == 0 {
		r.nextID++
		token.ID = r.nextID
	} else if token.ID > r.nextID {
		r.nextID = token.ID
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.rows[token.ID] = *token
	return nil
}

func (r *Tokens) GetBySelector(_ context.Context, selector string) (*models.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.Selector == selector {
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *Tokens) GetByID(_ context.Context, id uint) (*models.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r *Tokens) ListByUser(_ context.Context, userID uint) ([]models.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AccessToken
	for _, t := range r.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Tokens) Deactivate(_ context.Context, id, userID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	if t.DeactivatedAt == nil {
		t.DeactivatedAt = &at
		r.rows[id] = t
	}
	return nil
}

func (r *Tokens) Delete(_ context.Context, id, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *Tokens) TouchLastUsed(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Touches++
	t, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.LastUsed = &at
	r.rows[id] = t
	return nil
}

func (r *Tokens) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.rows {
		if t.Expires != nil && t.Expires.Before(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

// TouchCount returns the number of TouchLastUsed calls so far
func (r *Tokens) TouchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Touches
}
