package config

import (
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/projecthub/internal/pkg/env"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig
	DB      DatabaseConfig
	Cache   CacheConfig
	JWT     JWTConfig
	Tokens  TokenConfig
	Billing BillingConfig
	GitHub  GitHubConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	PublicDomain string
	Env          string
	// OpenAPIFile is served under /docs/api/v1; empty disables the docs.
	OpenAPIFile  string
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// CacheConfig holds Redis connection settings
type CacheConfig struct {
	Host     string
	Port     string
	Password string
}

// JWTConfig holds signed session token settings
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// TokenConfig holds personal access token settings
type TokenConfig struct {
	Prefix          string
	PurgeRetention  time.Duration
	PurgeInterval   time.Duration
	TouchDebounce   time.Duration
	DefaultLifetime time.Duration
}

// BillingConfig holds Stripe and subscription gate settings
type BillingConfig struct {
	StripeSecretKey string
	StripeBaseURL   string
	Timeout         time.Duration
	ReconcileGrace  time.Duration
	LockBackoff     time.Duration
}

// GitHubConfig holds GitHub OAuth settings
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	TokenURL     string
	APIBaseURL   string
	Timeout      time.Duration
	RefreshSkew  time.Duration
	LockBackoff  time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load builds the configuration from the loaded env map and the process
// environment.
func Load() (*Config, error) {
	publicDomain := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if publicDomain == "" {
		publicDomain = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         env.GetEnv("APP_HOST", "localhost"),
			Port:         env.GetEnv("APP_PORT", "4000"),
			PublicDomain: publicDomain,
			Env:          env.GetEnv("APP_ENV", "prod"),
			OpenAPIFile:  env.GetEnv("OPENAPI_FILE", "docs/v1/openapi.yml"),
		},
		DB: LoadDatabase(),
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		JWT: JWTConfig{
			SigningKey: env.GetEnv("JWT_SECRET", ""),
			Issuer:     env.GetEnv("JWT_ISSUER", "projecthub"),
			Audience:   env.GetEnv("JWT_AUDIENCE", "projecthub-api"),
			TTL:        env.GetEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Tokens: TokenConfig{
			Prefix:          env.GetEnv("TOKEN_PREFIX", "ckp_"),
			PurgeRetention:  env.GetEnvDuration("TOKEN_PURGE_RETENTION", 30*24*time.Hour),
			PurgeInterval:   env.GetEnvDuration("TOKEN_PURGE_INTERVAL", time.Hour),
			TouchDebounce:   env.GetEnvDuration("TOKEN_TOUCH_DEBOUNCE", time.Minute),
			DefaultLifetime: env.GetEnvDuration("TOKEN_DEFAULT_LIFETIME", 0),
		},
		Billing: BillingConfig{
			StripeSecretKey: strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
			StripeBaseURL:   strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", "https://api.stripe.com")),
			Timeout:         env.GetEnvDuration("STRIPE_TIMEOUT", 15*time.Second),
			ReconcileGrace:  env.GetEnvDuration("SUBSCRIPTION_RECONCILE_GRACE", 300*time.Second),
			LockBackoff:     env.GetEnvDuration("SUBSCRIPTION_LOCK_BACKOFF", 250*time.Millisecond),
		},
		GitHub: GitHubConfig{
			ClientID:     strings.TrimSpace(env.GetEnv("GITHUB_KEY", "")),
			ClientSecret: strings.TrimSpace(env.GetEnv("GITHUB_SECRET", "")),
			CallbackURL:  publicDomain + "/auth/github/callback",
			TokenURL:     strings.TrimSpace(env.GetEnv("GITHUB_TOKEN_URL", "https://github.com/login/oauth/access_token")),
			APIBaseURL:   strings.TrimSpace(env.GetEnv("GITHUB_API_BASE_URL", "https://api.github.com")),
			Timeout:      env.GetEnvDuration("GITHUB_TIMEOUT", 15*time.Second),
			RefreshSkew:  env.GetEnvDuration("GITHUB_REFRESH_SKEW", 5*time.Minute),
			LockBackoff:  env.GetEnvDuration("GITHUB_LOCK_BACKOFF", 250*time.Millisecond),
		},
		Log: LogConfig{
			Level: env.GetEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings. cmd/migrate uses it without
// requiring the API secrets.
func LoadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:     env.GetEnv("DB_PORT", "3306"),
		User:     env.GetEnv("DB_USER", ""),
		Password: env.GetEnv("DB_PASSWORD", ""),
		Name:     env.GetEnv("DB_NAME", ""),
	}
}

// Validate checks settings without which the API cannot safely start.
func (c *Config) Validate() error {
	if len(c.JWT.SigningKey) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if strings.TrimSpace(c.Tokens.Prefix) == "" {
		return errors.New("TOKEN_PREFIX must not be empty")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Server.Env == "dev"
}
