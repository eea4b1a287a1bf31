package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/config"
)

var gateNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func uintPtr(v uint) *uint { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func newTestGate(repo Repository, p Provider) *Gate {
	return NewGate(repo, p, config.BillingConfig{
		ReconcileGrace: 300 * time.Second,
		LockBackoff:    time.Millisecond,
	}).WithClock(func() time.Time { return gateNow })
}

func TestCheckFreePlanNeverCallsProvider(t *testing.T) {
	p := &fakeProvider{}
	repo := newFakeRepo(models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanFree})
	g := newTestGate(repo, p)

	ok, err := g.ForUser(context.Background(), &models.User{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, p.callCount())
}

func TestCheckPaidThroughNeverCallsProvider(t *testing.T) {
	p := &fakeProvider{}
	repo := newFakeRepo(models.Subscription{
		ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard,
		PaidUntil: timePtr(gateNow.Add(24 * time.Hour)),
	})
	g := newTestGate(repo, p)

	ok, err := g.ForUser(context.Background(), &models.User{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, p.callCount())
}

func TestForUserWithoutSubscription(t *testing.T) {
	g := newTestGate(newFakeRepo(), &fakeProvider{})
	ok, err := g.ForUser(context.Background(), &models.User{ID: 5})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcileNoRemoteSubscriptionDowngrades(t *testing.T) {
	// Standard plan, never paid, created ten minutes ago, provider reports
	// nothing active for the email.
	repo := newFakeRepo(models.Subscription{
		ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard,
		CreatedAt: gateNow.Add(-10 * time.Minute),
	})
	p := &fakeProvider{
		customers: map[string]*Customer{"a@example.com": {ID: "cus_1"}},
		subs:      map[string][]RemoteSubscription{},
	}
	g := newTestGate(repo, p)
	user := &models.User{ID: 1, Email: "a@example.com"}

	ok, err := g.ForUser(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, repo.has(1))

	ok, err = g.ForUser(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcileUnknownCustomerDowngrades(t *testing.T) {
	repo := newFakeRepo(models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard})
	g := newTestGate(repo, &fakeProvider{})

	ok, err := g.ForUser(context.Background(), &models.User{ID: 1, Email: "ghost@example.com"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, repo.has(1))
}

func TestReconcileAdoptsFurthestPeriodEnd(t *testing.T) {
	repo := newFakeRepo(models.Subscription{
		ID: 1, UserID: uintPtr(1), PlanID: models.PlanProfessional,
		PaidUntil: timePtr(gateNow.Add(-time.Hour)),
	})
	near := gateNow.Add(10 * 24 * time.Hour)
	far := gateNow.Add(40 * 24 * time.Hour)
	p := &fakeProvider{
		customers: map[string]*Customer{"a@example.com": {ID: "cus_1"}},
		subs: map[string][]RemoteSubscription{
			"cus_1": {{ID: "sub_near", PeriodEnd: near}, {ID: "sub_far", PeriodEnd: far}},
		},
	}
	g := newTestGate(repo, p)

	ok, err := g.ForUser(context.Background(), &models.User{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, far, *stored.PaidUntil)
	assert.Equal(t, "sub_far", stored.StripeSubscriptionID)
	assert.Equal(t, "cus_1", stored.StripeCustomerID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newFakeRepo(models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard})
	end := gateNow.Add(30 * 24 * time.Hour)
	p := &fakeProvider{
		customers: map[string]*Customer{"a@example.com": {ID: "cus_1"}},
		subs:      map[string][]RemoteSubscription{"cus_1": {{ID: "sub_1", PeriodEnd: end}}},
	}
	g := newTestGate(repo, p)
	user := &models.User{ID: 1, Email: "a@example.com"}

	first, err := g.ForUser(context.Background(), user)
	require.NoError(t, err)
	afterFirst, _ := repo.Get(context.Background(), 1)

	second, err := g.ForUser(context.Background(), user)
	require.NoError(t, err)
	afterSecond, _ := repo.Get(context.Background(), 1)

	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst.PaidUntil, afterSecond.PaidUntil)
	assert.Equal(t, afterFirst.StripeSubscriptionID, afterSecond.StripeSubscriptionID)
}

func TestReconcileTransientFailureLeavesRowUntouched(t *testing.T) {
	orig := models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard}
	repo := newFakeRepo(orig)
	p := &fakeProvider{err: fmt.Errorf("%w: stripe find_customer: timeout", autherr.ErrExternalService)}
	g := newTestGate(repo, p)

	ok, err := g.ForUser(context.Background(), &models.User{ID: 1, Email: "a@example.com"})
	assert.False(t, ok)
	assert.ErrorIs(t, err, autherr.ErrExternalService)

	stored, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, orig, *stored)
}

func TestReconcileSeesRefreshByLockHolder(t *testing.T) {
	repo := newFakeRepo(models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard})
	p := &fakeProvider{}
	// Simulate a concurrent caller committing between our read and our lock.
	repo.onLocked = func() {
		repo.mu.Lock()
		s := repo.rows[1]
		s.PaidUntil = timePtr(gateNow.Add(time.Hour))
		repo.rows[1] = s
		repo.mu.Unlock()
	}
	g := newTestGate(repo, p)

	sub := &models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard}
	ok, err := g.Reconcile(context.Background(), sub, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, p.callCount())
}

func TestReconcileLockContention(t *testing.T) {
	t.Run("still stale after backoff", func(t *testing.T) {
		repo := newFakeRepo(models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard})
		repo.lock(1)
		p := &fakeProvider{}
		g := newTestGate(repo, p)

		ok, err := g.ForUser(context.Background(), &models.User{ID: 1, Email: "a@example.com"})
		assert.False(t, ok)
		assert.ErrorIs(t, err, autherr.ErrExternalService)
		assert.Zero(t, p.callCount())
	})

	t.Run("holder refreshed the row", func(t *testing.T) {
		repo := newFakeRepo(models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard})
		repo.lock(1)
		g := newTestGate(repo, &fakeProvider{})

		sub, _ := repo.Get(context.Background(), 1)
		require.NoError(t, repo.Save(context.Background(), &models.Subscription{
			ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard,
			PaidUntil: timePtr(gateNow.Add(time.Hour)),
		}))

		ok, err := g.Reconcile(context.Background(), sub, "a@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("holder deleted the row", func(t *testing.T) {
		repo := newFakeRepo(models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard})
		repo.lock(1)
		g := newTestGate(repo, &fakeProvider{})

		sub, _ := repo.Get(context.Background(), 1)
		repo.mu.Lock()
		delete(repo.rows, 1)
		repo.mu.Unlock()

		ok, err := g.Reconcile(context.Background(), sub, "a@example.com")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRefreshIfStale(t *testing.T) {
	tests := []struct {
		name      string
		sub       models.Subscription
		wantCalls bool
	}{
		{
			name:      "within grace",
			sub:       models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard, CreatedAt: gateNow.Add(-time.Minute)},
			wantCalls: false,
		},
		{
			name:      "grace elapsed",
			sub:       models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard, CreatedAt: gateNow.Add(-10 * time.Minute)},
			wantCalls: true,
		},
		{
			name:      "lapsed payment",
			sub:       models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanStandard, PaidUntil: timePtr(gateNow.Add(-time.Second))},
			wantCalls: true,
		},
		{
			name:      "free plan",
			sub:       models.Subscription{ID: 1, UserID: uintPtr(1), PlanID: models.PlanFree},
			wantCalls: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			g := newTestGate(newFakeRepo(tt.sub), p)
			require.NoError(t, g.RefreshIfStale(context.Background(), &models.User{ID: 1, Email: "a@example.com"}))
			assert.Equal(t, tt.wantCalls, p.callCount() > 0)
		})
	}
}

func TestForOrganizationUsesBillingEmail(t *testing.T) {
	repo := newFakeRepo(models.Subscription{ID: 3, OrgID: uintPtr(9), PlanID: models.PlanProfessional})
	p := &fakeProvider{
		customers: map[string]*Customer{"billing@acme.test": {ID: "cus_org"}},
		subs:      map[string][]RemoteSubscription{"cus_org": {{ID: "sub_org", PeriodEnd: gateNow.Add(time.Hour)}}},
	}
	g := newTestGate(repo, p)

	ok, err := g.ForOrganization(context.Background(), &models.Organization{ID: 9, BillingEmail: "billing@acme.test"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReconcileWithoutBillingEmailKeepsRow(t *testing.T) {
	paid := gateNow.Add(-time.Minute)
	orig := models.Subscription{ID: 4, OrgID: uintPtr(9), PlanID: models.PlanProfessional, PaidUntil: &paid}
	repo := newFakeRepo(orig)
	p := &fakeProvider{}
	g := newTestGate(repo, p)

	for _, email := range []string{"", "   "} {
		ok, err := g.ForOrganization(context.Background(), &models.Organization{ID: 9, BillingEmail: email})
		assert.False(t, ok)
		assert.ErrorIs(t, err, autherr.ErrExternalService)
	}

	assert.Zero(t, p.callCount())
	stored, err := repo.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, orig, *stored)
}
