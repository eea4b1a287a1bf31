package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/projecthub/internal/pkg/env"
)

func TestLoadDefaults(t *testing.T) {
	original := env.Env
	t.Cleanup(func() { env.Env = original })

	env.Env = map[string]string{
		"JWT_SECRET": "0123456789abcdef0123456789abcdef",
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ckp_", cfg.Tokens.Prefix)
	assert.Equal(t, 300*time.Second, cfg.Billing.ReconcileGrace)
	assert.Equal(t, 15*time.Second, cfg.Billing.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "http://localhost:4000/auth/github/callback", cfg.GitHub.CallbackURL)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	original := env.Env
	t.Cleanup(func() { env.Env = original })

	env.Env = map[string]string{"JWT_SECRET": "short"}
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
