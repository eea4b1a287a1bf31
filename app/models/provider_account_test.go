package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderAccountTokenValidity(t *testing.T) {
	now := time.Now()
	soon := now.Add(2 * time.Minute)
	later := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.False(t, (&ProviderAccount{}).AccessTokenValid(now, time.Minute))
	assert.True(t, (&ProviderAccount{AccessToken: "a"}).AccessTokenValid(now, time.Minute))
	assert.True(t, (&ProviderAccount{AccessToken: "a", ExpiresAt: &later}).AccessTokenValid(now, 5*time.Minute))
	assert.False(t, (&ProviderAccount{AccessToken: "a", ExpiresAt: &soon}).AccessTokenValid(now, 5*time.Minute))

	assert.False(t, (&ProviderAccount{}).CanRefresh(now))
	assert.True(t, (&ProviderAccount{RefreshToken: "r"}).CanRefresh(now))
	assert.False(t, (&ProviderAccount{RefreshToken: "r", RefreshTokenExpiresAt: &past}).CanRefresh(now))
}
