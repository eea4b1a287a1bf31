// Package billing decides whether a user or organization is currently paid
// up, lazily reconciling stale local subscriptions against Stripe.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/config"
	"github.com/ManuelReschke/projecthub/internal/pkg/database"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/metrics"
)

const (
	outcomeEntitled   = "entitled"
	outcomeDowngraded = "downgraded"
	outcomeFresh      = "already_fresh"
	outcomeContended  = "lock_contended"
	outcomeError      = "error"
)

// Gate answers entitlement questions for subscriptions.
type Gate struct {
	repo     Repository
	provider Provider
	grace    time.Duration
	backoff  time.Duration
	now      func() time.Time
}

// NewGate creates a subscription gate.
func NewGate(repo Repository, provider Provider, cfg config.BillingConfig) *Gate {
	grace := cfg.ReconcileGrace
	if grace <= 0 {
		grace = 300 * time.Second
	}
	return &Gate{
		repo:     repo,
		provider: provider,
		grace:    grace,
		backoff:  cfg.LockBackoff,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// ForUser reports whether the user's own subscription is entitled. Users
// without a subscription row are not entitled.
func (g *Gate) ForUser(ctx context.Context, user *models.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	_, ok, err := g.ForOwner(ctx, models.UserOwner(user.ID), user.Email)
	return ok, err
}

// ForOrganization reports whether the organization's subscription is
// entitled, reconciling by its billing email.
func (g *Gate) ForOrganization(ctx context.Context, org *models.Organization) (bool, error) {
	if org == nil {
		return false, nil
	}
	_, ok, err := g.ForOwner(ctx, models.OrganizationOwner(org.ID), org.BillingEmail)
	return ok, err
}

// ForOwner loads and checks the subscription of an account owner. The
// returned subscription is nil when the owner has none.
func (g *Gate) ForOwner(ctx context.Context, owner models.AccountOwner, email string) (*models.Subscription, bool, error) {
	var (
		sub *models.Subscription
		err error
	)
	switch owner.Kind() {
	case models.OwnerUser:
		id, _ := owner.UserID()
		sub, err = g.repo.FindByUser(ctx, id)
	case models.OwnerOrganization:
		id, _ := owner.OrganizationID()
		sub, err = g.repo.FindByOrganization(ctx, id)
	default:
		return nil, false, models.ErrAccountOwner
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	ok, err := g.Check(ctx, sub, email)
	if err != nil {
		return nil, false, err
	}
	return sub, ok, nil
}

// Check evaluates one subscription. Free plans and subscriptions paid
// through now never reach the provider.
func (g *Gate) Check(ctx context.Context, sub *models.Subscription, email string) (bool, error) {
	if sub == nil {
		return false, nil
	}
	if sub.IsFree() {
		return true, nil
	}
	if sub.IsPaidThrough(g.now()) {
		return true, nil
	}
	return g.Reconcile(ctx, sub, email)
}

// RefreshIfStale reconciles the user's subscription when its payment window
// has lapsed. Fresh, free and missing subscriptions are left alone.
func (g *Gate) RefreshIfStale(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	sub, err := g.repo.FindByUser(ctx, user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sub.NeedsReconcile(g.now(), g.grace) {
		return nil
	}
	_, err = g.Reconcile(ctx, sub, user.Email)
	return err
}

// Reconcile refreshes sub from the provider under a row lock. On success sub
// reflects the persisted state.
func (g *Gate) Reconcile(ctx context.Context, sub *models.Subscription, email string) (bool, error) {
	log := logger.FromContext(ctx).With(zap.Uint("subscription_id", sub.ID))

	var (
		entitled bool
		outcome  string
		result   models.Subscription
		deleted  bool
	)
	err := g.repo.LockAndApply(ctx, sub.ID, func(locked *models.Subscription) (Mutation, error) {
		// Another caller may have refreshed while we waited for the lock
		if locked.IsFree() || locked.IsPaidThrough(g.now()) {
			entitled, outcome, result = true, outcomeFresh, *locked
			return MutationNone, nil
		}

		ok, m, err := g.fetch(ctx, locked, email)
		if err != nil {
			return MutationNone, err
		}
		entitled, result = ok, *locked
		if m == MutationDelete {
			outcome, deleted = outcomeDowngraded, true
		} else {
			outcome = outcomeEntitled
		}
		return m, nil
	})

	switch {
	case err == nil:
		metrics.BillingReconciliations.WithLabelValues(outcome).Inc()
		if deleted {
			log.Info("Subscription downgraded, no active remote subscription")
		} else {
			*sub = result
		}
		return entitled, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		metrics.BillingReconciliations.WithLabelValues(outcomeDowngraded).Inc()
		return false, nil
	case database.IsLockUnavailable(err):
		metrics.BillingReconciliations.WithLabelValues(outcomeContended).Inc()
		log.Warn("Subscription row locked by another refresh, backing off")
		return g.afterContention(ctx, sub)
	default:
		metrics.BillingReconciliations.WithLabelValues(outcomeError).Inc()
		log.Error("Subscription reconciliation failed", zap.Error(err))
		if errors.Is(err, autherr.ErrExternalService) {
			return false, err
		}
		return false, fmt.Errorf("reconcile subscription %d: %w", sub.ID, err)
	}
}

// fetch asks the provider for the authoritative state of sub and mutates it
// in place when an active subscription exists.
func (g *Gate) fetch(ctx context.Context, sub *models.Subscription, email string) (bool, Mutation, error) {
	// A missing local email says nothing about the remote state
	if strings.TrimSpace(email) == "" {
		return false, MutationNone, fmt.Errorf("%w: no billing email for subscription %d", autherr.ErrExternalService, sub.ID)
	}
	customer, err := g.provider.FindCustomer(ctx, email)
	if err != nil {
		return false, MutationNone, err
	}
	if customer == nil {
		return false, MutationDelete, nil
	}

	remote, err := g.provider.ListActiveSubscriptions(ctx, customer.ID)
	if err != nil {
		return false, MutationNone, err
	}
	if len(remote) == 0 {
		return false, MutationDelete, nil
	}

	best := remote[0]
	for _, r := range remote[1:] {
		if r.PeriodEnd.After(best.PeriodEnd) {
			best = r
		}
	}
	paidUntil := best.PeriodEnd
	sub.PaidUntil = &paidUntil
	sub.StripeSubscriptionID = best.ID
	sub.StripeCustomerID = customer.ID
	return paidUntil.After(g.now()), MutationUpdate, nil
}

// afterContention waits once and answers from whatever the lock holder left
// behind.
func (g *Gate) afterContention(ctx context.Context, sub *models.Subscription) (bool, error) {
	if g.backoff > 0 {
		t := time.NewTimer(g.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}

	fresh, err := g.repo.Get(ctx, sub.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fresh.IsFree() || fresh.IsPaidThrough(g.now()) {
		*sub = *fresh
		return true, nil
	}
	return false, fmt.Errorf("%w: subscription refresh in progress", autherr.ErrExternalService)
}
