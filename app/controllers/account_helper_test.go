package controllers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository/memory"
)

func TestAccountSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe", "jane-doe"},
		{"  ACME  Corp!! ", "acme-corp"},
		{"x", "user"},
		{"???", "user"},
		{"dvc_bot.2", "dvc-bot-2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, accountSlug(tt.in))
		})
	}
}

func TestEnsurePersonalAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	first := &models.User{Name: "Jane", Email: "jane@example.com"}
	second := &models.User{Name: "jane", Email: "other@example.com"}
	require.NoError(t, store.Users.Create(ctx, first))
	require.NoError(t, store.Users.Create(ctx, second))

	acc, err := ensurePersonalAccount(ctx, store.Accounts, first)
	require.NoError(t, err)
	assert.Equal(t, "jane", acc.Name)

	again, err := ensurePersonalAccount(ctx, store.Accounts, first)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, again.ID)

	// Name taken by another user falls back to the id suffix
	acc2, err := ensurePersonalAccount(ctx, store.Accounts, second)
	require.NoError(t, err)
	assert.Equal(t, "jane-2", acc2.Name)
	owner, ok := acc2.Owner().UserID()
	assert.True(t, ok)
	assert.Equal(t, second.ID, owner)
}
