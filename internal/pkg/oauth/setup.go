package oauth

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/github"
	"github.com/redis/go-redis/v9"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/projecthub/internal/pkg/config"
)

// StateDatabase is the Redis database that holds OAuth state sessions.
const StateDatabase = 2

// Scopes requested from GitHub on login.
var Scopes = []string{"read:user", "user:email"}

// Setup registers the GitHub provider and stores OAuth state in Redis,
// using the same connection settings as the cache on a separate database.
// It is safe to call multiple times; providers will just be re-registered.
func Setup(cfg *config.Config, rdb *redis.Client) {
	goth.UseProviders(
		github.New(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL, Scopes...),
	)

	gothfiber.SessionStore = session.New(session.Config{
		Storage:        NewRedisStorage(rdb, StateDatabase),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !cfg.IsDev(),
		Expiration:     15 * time.Minute,
	})
}

// NewRedisStorage builds a fiber storage on database db of the server rdb
// is connected to.
func NewRedisStorage(rdb *redis.Client, db int) *redisstorage.Storage {
	host, port := "127.0.0.1", 6379
	var username, password string
	if rdb != nil {
		opts := rdb.Options()
		username, password = opts.Username, opts.Password
		if opts.Addr != "" {
			if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
				host = h
				if parsed, e := strconv.Atoi(p); e == nil {
					port = parsed
				}
			} else {
				host = opts.Addr
			}
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Database: db,
		Reset:    false,
	})
}
