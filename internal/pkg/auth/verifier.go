// Package auth resolves raw credentials to authenticated principals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/metrics"
	"github.com/ManuelReschke/projecthub/internal/pkg/security"
)

// Method names how a principal authenticated.
type Method string

const (
	MethodPersonalToken Method = "personal_token"
	MethodSession       Method = "session"
)

// Principal is the authenticated user of one request.
type Principal struct {
	User    *models.User
	Scope   string
	TokenID *uint
	Method  Method
}

// UserID returns the principal's user id, zero for a nil principal.
func (p *Principal) UserID() uint {
	if p == nil || p.User == nil {
		return 0
	}
	return p.User.ID
}

// Debouncer limits how often a keyed side effect runs.
type Debouncer interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// SubscriptionRefresher revalidates a user's lapsed subscription.
type SubscriptionRefresher interface {
	RefreshIfStale(ctx context.Context, user *models.User) error
}

// Options configures a Verifier. Debouncer and Subscriptions are optional.
type Options struct {
	Users         repository.UserRepository
	Tokens        repository.TokenRepository
	Signer        *security.SessionSigner
	Debouncer     Debouncer
	Subscriptions SubscriptionRefresher
	Prefix        string
	TouchWindow   time.Duration
}

// Verifier turns raw credentials into principals.
type Verifier struct {
	users       repository.UserRepository
	tokens      repository.TokenRepository
	signer      *security.SessionSigner
	debouncer   Debouncer
	subs        SubscriptionRefresher
	prefix      string
	touchWindow time.Duration
	now         func() time.Time
}

func NewVerifier(opts Options) *Verifier {
	return &Verifier{
		users:       opts.Users,
		tokens:      opts.Tokens,
		signer:      opts.Signer,
		debouncer:   opts.Debouncer,
		subs:        opts.Subscriptions,
		prefix:      opts.Prefix,
		touchWindow: opts.TouchWindow,
		now:         time.Now,
	}
}

// WithClock overrides the time source.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify resolves raw to a principal. requiredScope is the scope the caller
// declares for the request, empty for ordinary requests.
func (v *Verifier) Verify(ctx context.Context, raw, requiredScope string) (*Principal, error) {
	raw = strings.TrimSpace(raw)

	var (
		p      *Principal
		err    error
		method = MethodSession
	)
	switch {
	case raw == "":
		err = autherr.ErrUnauthenticated
	case security.IsPersonalToken(raw, v.prefix):
		method = MethodPersonalToken
		p, err = v.verifyPersonalToken(ctx, raw, requiredScope)
	default:
		p, err = v.verifySession(ctx, raw, requiredScope)
	}

	metrics.AuthAttempts.WithLabelValues(string(method), resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	v.refreshSubscription(ctx, p.User)
	return p, nil
}

func (v *Verifier) verifyPersonalToken(ctx context.Context, raw, requiredScope string) (*Principal, error) {
	selector, verifier, ok := security.SplitPersonalToken(raw, v.prefix)
	if !ok {
		return nil, autherr.ErrUnauthenticated
	}

	tok, err := v.tokens.GetBySelector(ctx, selector)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, autherr.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if err := checkState(tok, v.now()); err != nil {
		return nil, err
	}
	if tok.VerifierHash == "" || !security.CheckVerifier(verifier, tok.VerifierHash) {
		return nil, autherr.ErrInvalidToken
	}
	if tok.ScopeValue() != requiredScope {
		return nil, autherr.ErrInvalidScope
	}

	user, err := v.loadUser(ctx, tok.UserID)
	if err != nil {
		return nil, err
	}

	v.touch(ctx, tok.ID)

	id := tok.ID
	return &Principal{User: user, Scope: tok.ScopeValue(), TokenID: &id, Method: MethodPersonalToken}, nil
}

func (v *Verifier) verifySession(ctx context.Context, raw, requiredScope string) (*Principal, error) {
	if v.signer == nil {
		return nil, autherr.ErrUnauthenticated
	}
	claims, err := v.signer.Parse(raw)
	if err != nil {
		logger.FromContext(ctx).Debug("Session token rejected", zap.Error(err))
		return nil, autherr.ErrUnauthenticated
	}
	if claims.Scope != requiredScope {
		return nil, autherr.ErrInvalidScope
	}

	var userID uint
	if claims.TokenID != nil {
		tok, err := v.tokens.GetByID(ctx, *claims.TokenID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrInvalidToken
		}
		if err != nil {
			return nil, fmt.Errorf("lookup token: %w", err)
		}
		if err := checkState(tok, v.now()); err != nil {
			return nil, err
		}
		userID = tok.UserID
	} else {
		userID, err = claims.UserID()
		if err != nil {
			return nil, autherr.ErrUnauthenticated
		}
	}

	user, err := v.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Principal{User: user, Scope: claims.Scope, TokenID: claims.TokenID, Method: MethodSession}, nil
}

func checkState(tok *models.AccessToken, now time.Time) error {
	switch tok.State(now) {
	case models.TokenStateDeactivated:
		return autherr.ErrTokenDeactivated
	case models.TokenStateExpired:
		return autherr.ErrTokenExpired
	default:
		return nil
	}
}

func (v *Verifier) loadUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := v.users.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, autherr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive() {
		return nil, autherr.ErrInactiveUser
	}
	return user, nil
}

// touch records token usage at most once per window and token.
func (v *Verifier) touch(ctx context.Context, tokenID uint) {
	log := logger.FromContext(ctx)
	if v.debouncer != nil && v.touchWindow > 0 {
		ok, err := v.debouncer.Allow(ctx, "token:last_used:"+strconv.FormatUint(uint64(tokenID), 10), v.touchWindow)
		if err != nil {
			log.Warn("Token touch debounce unavailable", zap.Error(err))
		}
		if !ok {
			return
		}
	}
	if err := v.tokens.TouchLastUsed(ctx, tokenID, v.now()); err != nil {
		log.Warn("Failed to record token usage", zap.Uint("token_id", tokenID), zap.Error(err))
	}
}

// refreshSubscription revalidates a lapsed subscription. Billing outages
// never fail authentication; the gate reports them where entitlement matters.
func (v *Verifier) refreshSubscription(ctx context.Context, user *models.User) {
	if v.subs == nil || user == nil {
		return
	}
	if err := v.subs.RefreshIfStale(ctx, user); err != nil {
		logger.FromContext(ctx).Warn("Subscription revalidation failed",
			zap.Uint("user_id", user.ID), zap.Error(err))
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return autherr.Code(err)
}
