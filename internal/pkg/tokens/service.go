// Package tokens issues and manages personal access tokens.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/security"
)

// maxSelectorAttempts bounds selector regeneration on unique index collisions.
const maxSelectorAttempts = 5

var ErrInvalidTokenRequest = errors.New("invalid token request")

// IssueRequest describes a token to create. A zero TTL falls back to the
// service default; a negative DefaultLifetime means tokens never expire.
type IssueRequest struct {
	UserID uint
	Name   string
	Scope  string
	TTL    time.Duration
}

// Issued carries the raw token, which is never retrievable again.
type Issued struct {
	Token *models.AccessToken
	Raw   string
}

// Service manages the lifecycle of personal access tokens.
type Service struct {
	repo            repository.TokenRepository
	prefix          string
	defaultLifetime time.Duration
	now             func() time.Time
}

// NewService creates a token service.
func NewService(repo repository.TokenRepository, prefix string, defaultLifetime time.Duration) *Service {
	return &Service{
		repo:            repo,
		prefix:          prefix,
		defaultLifetime: defaultLifetime,
		now:             time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue creates a new token and retries with a fresh selector when the
// selector is already taken.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if req.UserID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidTokenRequest)
	}
	if req.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must not be negative", ErrInvalidTokenRequest)
	}
	name := strings.TrimSpace(req.Name)
	if len(name) > 100 {
		return nil, fmt.Errorf("%w: name too long", ErrInvalidTokenRequest)
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.defaultLifetime
	}

	var scope *string
	if sc := strings.TrimSpace(req.Scope); sc != "" {
		scope = &sc
	}

	var lastErr error
	for attempt := 0; attempt < maxSelectorAttempts; attempt++ {
		pt, err := security.GeneratePersonalToken(s.prefix)
		if err != nil {
			return nil, err
		}
		row := &models.AccessToken{
			UserID:       req.UserID,
			Name:         name,
			Selector:     pt.Selector,
			VerifierHash: pt.VerifierHash,
			Scope:        scope,
		}
		if ttl > 0 {
			exp := s.now().Add(ttl)
			row.Expires = &exp
		}

		err = s.repo.Create(ctx, row)
		if err == nil {
			return &Issued{Token: row, Raw: pt.Raw}, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		lastErr = err
		logger.FromContext(ctx).Warn("Token selector collision, regenerating",
			zap.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("could not allocate unique selector: %w", lastErr)
}

// List returns the tokens of a user, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]models.AccessToken, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Deactivate turns a token off. Deactivation cannot be undone.
func (s *Service) Deactivate(ctx context.Context, userID, tokenID uint) error {
	err := s.repo.Deactivate(ctx, tokenID, userID, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return autherr.ErrResourceNotFound
	}
	return err
}

// Delete removes a token owned by userID.
func (s *Service) Delete(ctx context.Context, userID, tokenID uint) error {
	err := s.repo.Delete(ctx, tokenID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return autherr.ErrResourceNotFound
	}
	return err
}

// PurgeExpired removes tokens that expired more than retention ago.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.now().Add(-retention))
}

// RunPurger purges on every tick until ctx is done.
func (s *Service) RunPurger(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logger.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx, retention)
			if err != nil {
				log.Error("Failed to purge expired tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("Purged expired tokens", zap.Int64("count", n))
			}
		}
	}
}
