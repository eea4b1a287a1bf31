package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/controllers"
	"github.com/ManuelReschke/projecthub/app/repository"
	"github.com/ManuelReschke/projecthub/internal/pkg/access"
	"github.com/ManuelReschke/projecthub/internal/pkg/auth"
	"github.com/ManuelReschke/projecthub/internal/pkg/billing"
	"github.com/ManuelReschke/projecthub/internal/pkg/cache"
	"github.com/ManuelReschke/projecthub/internal/pkg/config"
	"github.com/ManuelReschke/projecthub/internal/pkg/database"
	"github.com/ManuelReschke/projecthub/internal/pkg/env"
	"github.com/ManuelReschke/projecthub/internal/pkg/github"
	"github.com/ManuelReschke/projecthub/internal/pkg/guard"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
	"github.com/ManuelReschke/projecthub/internal/pkg/middleware"
	"github.com/ManuelReschke/projecthub/internal/pkg/oauth"
	"github.com/ManuelReschke/projecthub/internal/pkg/router"
	"github.com/ManuelReschke/projecthub/internal/pkg/security"
	"github.com/ManuelReschke/projecthub/internal/pkg/tokens"
)

// Redis database holding rate limiter counters
const limiterDatabase = 3

func main() {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "projecthub",
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zlog := logger.GetLogger()
	defer func() { _ = zlog.Sync() }()

	db, err := database.SetupDatabase(cfg.DB, cfg.IsDev())
	if err != nil {
		zlog.Fatal("database unavailable", zap.Error(err))
	}
	rdb := cache.SetupCache(cfg.Cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, purger := NewApplication(cfg, db, rdb)
	go purger.RunPurger(ctx, cfg.Tokens.PurgeInterval, cfg.Tokens.PurgeRetention)

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("shutdown failed", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zlog.Info("listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

// NewApplication wires all components onto a fiber app. The returned token
// service runs the purge loop.
func NewApplication(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*fiber.App, *tokens.Service) {
	factory := repository.NewFactory(db)
	repos := factory.GetRepositories()

	signer := security.NewSessionSigner(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL)
	tokenService := tokens.NewService(repos.Token, cfg.Tokens.Prefix, cfg.Tokens.DefaultLifetime)

	gate := billing.NewGate(billing.NewRepository(factory.DB()), billing.NewStripeClient(cfg.Billing), cfg.Billing)

	githubAccounts := github.NewRepository(factory.DB())
	githubClient := github.NewClient(cfg.GitHub)
	refresher := github.NewRefresher(githubAccounts, githubClient, cfg.GitHub.RefreshSkew, cfg.GitHub.LockBackoff)

	verifier := auth.NewVerifier(auth.Options{
		Users:         repos.User,
		Tokens:        repos.Token,
		Signer:        signer,
		Debouncer:     cache.NewDebouncer(rdb, "projecthub:"),
		Subscriptions: gate,
		Prefix:        cfg.Tokens.Prefix,
		TouchWindow:   cfg.Tokens.TouchDebounce,
	})
	resolver := access.NewResolver(repos.Account, repos.Organization, repos.Project)
	g := guard.New(verifier, resolver, gate, repos)

	oauth.Setup(cfg, rdb)

	app := fiber.New(fiber.Config{
		AppName:      "projecthub",
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    1 << 20,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New(), logger.Middleware())

	router.InstallRouter(app, router.Deps{
		Authn:    g,
		Projects: g,
		Auth:     controllers.NewAuthController(repos, signer, g),
		OAuth:    controllers.NewOAuthController(repos, githubAccounts, signer),
		Users:    controllers.NewUserController(repos, gate, refresher, githubClient),
		Tokens:   controllers.NewTokenController(tokenService, cfg.Tokens.PurgeRetention),
		Project:  controllers.NewProjectController(g, repos),
		Limiter:  oauth.NewRedisStorage(rdb, limiterDatabase),
		OpenAPI:  cfg.Server.OpenAPIFile,
		HealthChecks: map[string]router.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"cache": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
	})

	return app, tokenService
}
