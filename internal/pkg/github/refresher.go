package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/database"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/metrics"
)

var (
	// ErrNotLinked is returned when the user has no GitHub account linked.
	ErrNotLinked = errors.New("github account not linked")
	// ErrReauthRequired is returned when the stored grant can no longer be
	// refreshed and the user has to log in with GitHub again.
	ErrReauthRequired = errors.New("github re-authorization required")
)

// TokenRefresher is the part of Client the refresher needs.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Refresher hands out valid GitHub user tokens, refreshing expired ones.
type Refresher struct {
	repo    Repository
	client  TokenRefresher
	skew    time.Duration
	backoff time.Duration
	now     func() time.Time
}

func NewRefresher(repo Repository, client TokenRefresher, skew, backoff time.Duration) *Refresher {
	return &Refresher{
		repo:    repo,
		client:  client,
		skew:    skew,
		backoff: backoff,
		now:     time.Now,
	}
}

// WithClock overrides the time source.
func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	r.now = now
	return r
}

// AccessToken returns a usable access token for userID.
func (r *Refresher) AccessToken(ctx context.Context, userID uint) (string, error) {
	acc, err := r.repo.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotLinked
	}
	if err != nil {
		return "", err
	}
	if acc.AccessTokenValid(r.now(), r.skew) {
		return acc.AccessToken, nil
	}
	if !acc.CanRefresh(r.now()) {
		metrics.GitHubTokenRefreshes.WithLabelValues("reauth_required").Inc()
		return "", ErrReauthRequired
	}

	log := logger.FromContext(ctx).With(zap.Uint("user_id", userID))

	var token string
	err = r.repo.LockAndUpdate(ctx, acc.ID, func(locked *models.ProviderAccount) (bool, error) {
		now := r.now()
		if locked.AccessTokenValid(now, r.skew) {
			token = locked.AccessToken
			return false, nil
		}
		if !locked.CanRefresh(now) {
			return false, ErrReauthRequired
		}

		tr, err := r.client.Refresh(ctx, locked.RefreshToken)
		if err != nil {
			return false, err
		}
		apply(locked, tr, now)
		token = locked.AccessToken
		return true, nil
	})

	var oe *OAuthError
	switch {
	case err == nil:
		metrics.GitHubTokenRefreshes.WithLabelValues("refreshed").Inc()
		return token, nil
	case database.IsLockUnavailable(err):
		metrics.GitHubTokenRefreshes.WithLabelValues("lock_contended").Inc()
		log.Warn("GitHub account row locked by another refresh, backing off")
		return r.afterContention(ctx, acc.ID)
	case errors.Is(err, ErrReauthRequired):
		metrics.GitHubTokenRefreshes.WithLabelValues("reauth_required").Inc()
		return "", err
	case errors.As(err, &oe):
		metrics.GitHubTokenRefreshes.WithLabelValues("rejected").Inc()
		log.Warn("GitHub rejected token refresh", zap.String("code", oe.Code))
		return "", fmt.Errorf("%w: %v", ErrReauthRequired, oe)
	default:
		metrics.GitHubTokenRefreshes.WithLabelValues("error").Inc()
		log.Error("GitHub token refresh failed", zap.Error(err))
		return "", err
	}
}

func (r *Refresher) afterContention(ctx context.Context, id uint) (string, error) {
	if r.backoff > 0 {
		t := time.NewTimer(r.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	acc, err := r.repo.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotLinked
	}
	if err != nil {
		return "", err
	}
	if acc.AccessTokenValid(r.now(), r.skew) {
		return acc.AccessToken, nil
	}
	return "", fmt.Errorf("%w: github token refresh in progress", autherr.ErrExternalService)
}

// apply copies a token response onto the account. Zero expiry fields mean
// the token does not expire.
func apply(acc *models.ProviderAccount, tr *TokenResponse, now time.Time) {
	acc.AccessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		acc.RefreshToken = tr.RefreshToken
	}
	acc.ExpiresAt = nil
	if tr.ExpiresIn > 0 {
		t := now.Add(time.Duration(tr.ExpiresIn) * time.Second)
		acc.ExpiresAt = &t
	}
	if tr.RefreshTokenExpiresIn > 0 {
		t := now.Add(time.Duration(tr.RefreshTokenExpiresIn) * time.Second)
		acc.RefreshTokenExpiresAt = &t
	}
}

// Link stores the tokens of a fresh OAuth login for userID.
func Link(ctx context.Context, repo Repository, userID uint, providerUserID, login string, tr *TokenResponse, now time.Time) (*models.ProviderAccount, error) {
	acc := &models.ProviderAccount{
		UserID:         userID,
		Provider:       models.ProviderGitHub,
		ProviderUserID: providerUserID,
		Login:          login,
	}
	apply(acc, tr, now)
	if err := repo.Upsert(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}
