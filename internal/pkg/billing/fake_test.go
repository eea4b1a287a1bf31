package billing

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/database"
)

type fakeRepo struct {
	mu     sync.Mutex
	rows   map[uint]models.Subscription
	locked map[uint]bool

	// onLocked runs while the row lock is held
	onLocked func()
}

func newFakeRepo(subs ...models.Subscription) *fakeRepo {
	r := &fakeRepo{rows: map[uint]models.Subscription{}, locked: map[uint]bool{}}
	for _, s := range subs {
		r.rows[s.ID] = s
	}
	return r
}

func (r *fakeRepo) Get(_ context.Context, id uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *fakeRepo) FindByUser(_ context.Context, userID uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserID != nil && *s.UserID == userID {
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) FindByOrganization(_ context.Context, orgID uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.OrgID != nil && *s.OrgID == orgID {
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) Save(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[sub.ID] = *sub
	return nil
}

func (r *fakeRepo) LockAndApply(_ context.Context, id uint, fn func(sub *models.Subscription) (Mutation, error)) error {
	r.mu.Lock()
	if r.locked[id] {
		r.mu.Unlock()
		return database.ErrLockUnavailable
	}
	if _, ok := r.rows[id]; !ok {
		r.mu.Unlock()
		return gorm.ErrRecordNotFound
	}
	r.locked[id] = true
	hook := r.onLocked
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.locked, id)
		r.mu.Unlock()
	}()

	if hook != nil {
		hook()
	}

	r.mu.Lock()
	s := r.rows[id]
	r.mu.Unlock()

	m, err := fn(&s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch m {
	case MutationUpdate:
		r.rows[id] = s
	case MutationDelete:
		delete(r.rows, id)
	}
	return nil
}

// lock marks a row as held by another transaction.
func (r *fakeRepo) lock(id uint) {
	r.mu.Lock()
	r.locked[id] = true
	r.mu.Unlock()
}

func (r *fakeRepo) has(id uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	return ok
}

type fakeProvider struct {
	mu        sync.Mutex
	customers map[string]*Customer
	subs      map[string][]RemoteSubscription
	err       error
	calls     int
}

func (p *fakeProvider) FindCustomer(_ context.Context, email string) (*Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.customers[email], nil
}

func (p *fakeProvider) ListActiveSubscriptions(_ context.Context, customerID string) ([]RemoteSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.subs[customerID], nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
