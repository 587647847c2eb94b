package redis

import (
	"context"
	"time"

	"smallbiznis-crm/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the client backing the trial facts cache and readiness checks.
var Module = fx.Module("redis",
	fx.Provide(New),
)

// Options maps the REDIS config section onto go-redis options.
func Options(c *config.Config) *redis.Options {
	return &redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	}
}

func New(lc fx.Lifecycle, c *config.Config) *redis.Client {
	opts := Options(c)
	log := zap.L().With(
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("pool_size", opts.PoolSize),
	)

	rdb := redis.NewClient(opts)

	var err error
	for i := 0; i < 5; i++ {
		if err = rdb.Ping(context.Background()).Err(); err == nil {
			break
		}

		log.Warn("[Redis] Redis not ready, retrying in 3 seconds...", zap.Int("retry", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		// the trial cache degrades to the database, so keep starting
		log.Error("[Redis] Redis unreachable", zap.Error(err))
	} else {
		log.Info("[Redis] Connected to Redis")
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return rdb
}
