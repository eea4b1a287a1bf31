package github

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/database"
)

var refreshNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu     sync.Mutex
	rows   map[uint]models.ProviderAccount
	locked bool
}

func newFakeRepo(accs ...models.ProviderAccount) *fakeRepo {
	r := &fakeRepo{rows: map[uint]models.ProviderAccount{}}
	for _, a := range accs {
		r.rows[a.ID] = a
	}
	return r
}

func (r *fakeRepo) Get(_ context.Context, id uint) (*models.ProviderAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *fakeRepo) FindByUser(_ context.Context, userID uint) (*models.ProviderAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.UserID == userID {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) FindByProviderUserID(_ context.Context, providerUserID string) (*models.ProviderAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ProviderUserID == providerUserID {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) Upsert(_ context.Context, account *models.ProviderAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.rows {
		if a.ProviderUserID == account.ProviderUserID {
			account.ID = id
		}
	}
	if account.ID == 0 {
		account.ID = uint(len(r.rows) + 1)
	}
	r.rows[account.ID] = *account
	return nil
}

func (r *fakeRepo) LockAndUpdate(_ context.Context, id uint, fn func(account *models.ProviderAccount) (bool, error)) error {
	r.mu.Lock()
	if r.locked {
		r.mu.Unlock()
		return database.ErrLockUnavailable
	}
	a, ok := r.rows[id]
	r.mu.Unlock()
	if !ok {
		return gorm.ErrRecordNotFound
	}
	save, err := fn(&a)
	if err != nil || !save {
		return err
	}
	r.mu.Lock()
	r.rows[id] = a
	r.mu.Unlock()
	return nil
}

type fakeRefresher struct {
	resp  *TokenResponse
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (*TokenResponse, error) {
	f.calls++
	return f.resp, f.err
}

func expiredAccount() models.ProviderAccount {
	past := refreshNow.Add(-time.Minute)
	return models.ProviderAccount{
		ID: 1, UserID: 7, Provider: models.ProviderGitHub, ProviderUserID: "42",
		AccessToken: "ghu_old", RefreshToken: "ghr_old", ExpiresAt: &past,
	}
}

func newTestRefresher(repo Repository, client TokenRefresher) *Refresher {
	return NewRefresher(repo, client, 5*time.Minute, time.Millisecond).
		WithClock(func() time.Time { return refreshNow })
}

func TestAccessTokenStillValid(t *testing.T) {
	future := refreshNow.Add(time.Hour)
	acc := expiredAccount()
	acc.ExpiresAt = &future
	client := &fakeRefresher{}

	token, err := newTestRefresher(newFakeRepo(acc), client).AccessToken(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "ghu_old", token)
	assert.Zero(t, client.calls)
}

func TestAccessTokenRefreshesAndPersists(t *testing.T) {
	repo := newFakeRepo(expiredAccount())
	client := &fakeRefresher{resp: &TokenResponse{AccessToken: "ghu_new", RefreshToken: "ghr_new", ExpiresIn: 3600}}

	token, err := newTestRefresher(repo, client).AccessToken(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "ghu_new", token)

	stored, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ghr_new", stored.RefreshToken)
	assert.Equal(t, refreshNow.Add(time.Hour), *stored.ExpiresAt)
}

func TestAccessTokenFailedRefreshPersistsNothing(t *testing.T) {
	repo := newFakeRepo(expiredAccount())
	client := &fakeRefresher{err: &OAuthError{Code: "bad_refresh_token"}}

	_, err := newTestRefresher(repo, client).AccessToken(context.Background(), 7)
	assert.ErrorIs(t, err, ErrReauthRequired)

	stored, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ghu_old", stored.AccessToken)
	assert.Equal(t, "ghr_old", stored.RefreshToken)
}

func TestAccessTokenTransientFailure(t *testing.T) {
	repo := newFakeRepo(expiredAccount())
	client := &fakeRefresher{err: errors.Join(autherr.ErrExternalService, errors.New("timeout"))}

	_, err := newTestRefresher(repo, client).AccessToken(context.Background(), 7)
	assert.ErrorIs(t, err, autherr.ErrExternalService)
}

func TestAccessTokenNotLinked(t *testing.T) {
	_, err := newTestRefresher(newFakeRepo(), &fakeRefresher{}).AccessToken(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestAccessTokenRefreshTokenExpired(t *testing.T) {
	acc := expiredAccount()
	gone := refreshNow.Add(-time.Hour)
	acc.RefreshTokenExpiresAt = &gone
	client := &fakeRefresher{}

	_, err := newTestRefresher(newFakeRepo(acc), client).AccessToken(context.Background(), 7)
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.Zero(t, client.calls)
}

func TestAccessTokenLockContention(t *testing.T) {
	repo := newFakeRepo(expiredAccount())
	repo.locked = true
	client := &fakeRefresher{}

	_, err := newTestRefresher(repo, client).AccessToken(context.Background(), 7)
	assert.ErrorIs(t, err, autherr.ErrExternalService)
	assert.Zero(t, client.calls)
}

func TestLink(t *testing.T) {
	repo := newFakeRepo()
	acc, err := Link(context.Background(), repo, 7, "42", "octocat",
		&TokenResponse{AccessToken: "ghu", RefreshToken: "ghr", ExpiresIn: 60, RefreshTokenExpiresIn: 120}, refreshNow)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGitHub, acc.Provider)
	assert.Equal(t, refreshNow.Add(time.Minute), *acc.ExpiresAt)
	assert.Equal(t, refreshNow.Add(2*time.Minute), *acc.RefreshTokenExpiresAt)
}
