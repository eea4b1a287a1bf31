package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ManuelReschke/projecthub/internal/pkg/config"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
)

var client *redis.Client

// SetupCache initializes the connection to the Redis server. A failed ping
// is logged, not fatal: callers degrade to the database.
func SetupCache(cfg config.CacheConfig) *redis.Client {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().Warn("could not connect to redis cache", zap.Error(err))
	} else {
		logger.GetLogger().Info("connected to redis cache", zap.String("addr", client.Options().Addr))
	}
	return client
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Debouncer lets one caller per key through within a time window.
type Debouncer struct {
	rdb    *redis.Client
	prefix string
}

func NewDebouncer(rdb *redis.Client, prefix string) *Debouncer {
	return &Debouncer{rdb: rdb, prefix: prefix}
}

// Allow reports whether the caller won the window for key. On Redis errors
// it returns the error and true so the caller still performs the work.
func (d *Debouncer) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if d == nil || d.rdb == nil {
		return true, nil
	}
	ok, err := d.rdb.SetNX(ctx, d.prefix+key, 1, window).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}
