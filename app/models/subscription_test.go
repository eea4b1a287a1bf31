package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionNeedsReconcile(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	grace := 300 * time.Second
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{name: "nil", sub: nil, want: false},
		{name: "free without paid_until", sub: &Subscription{PlanID: PlanFree, CreatedAt: now.Add(-time.Hour)}, want: false},
		{name: "free with lapsed paid_until", sub: &Subscription{PlanID: PlanFree, PaidUntil: &past}, want: false},
		{name: "paid within grace", sub: &Subscription{PlanID: PlanStandard, CreatedAt: now.Add(-time.Minute)}, want: false},
		{name: "paid past grace", sub: &Subscription{PlanID: PlanStandard, CreatedAt: now.Add(-10 * time.Minute)}, want: true},
		{name: "paid lapsed", sub: &Subscription{PlanID: PlanProfessional, PaidUntil: &past}, want: true},
		{name: "paid current", sub: &Subscription{PlanID: PlanStandard, PaidUntil: &future}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.NeedsReconcile(now, grace))
		})
	}
}

func TestSubscriptionIsPaidThrough(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.True(t, (&Subscription{PaidUntil: &future}).IsPaidThrough(now))
	assert.False(t, (&Subscription{PaidUntil: &past}).IsPaidThrough(now))
	assert.False(t, (&Subscription{}).IsPaidThrough(now))
}

func TestSubscriptionBeforeSave(t *testing.T) {
	one, nine, zero := uint(1), uint(9), uint(0)

	tests := []struct {
		name    string
		sub     Subscription
		wantErr bool
	}{
		{name: "user", sub: Subscription{UserID: &one}},
		{name: "organization", sub: Subscription{OrgID: &nine}},
		{name: "both", sub: Subscription{UserID: &one, OrgID: &nine}, wantErr: true},
		{name: "neither", sub: Subscription{}, wantErr: true},
		{name: "zero user", sub: Subscription{UserID: &zero}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.BeforeSave(nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSubscriptionOwner)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
