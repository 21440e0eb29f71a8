package clients

import (
	"context"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/pkg/e"
	r "github.com/redis/go-redis/v9"
)

const redisPoolTimeout = 3 * time.Second

// RedisClient владеет соединением с Redis, в котором кэшируются сведения о предметах.
type RedisClient struct {
	Client *r.Client
}

func NewRedisClient(cfg *cfg.RedisCfg) *RedisClient {
	return &RedisClient{Client: r.NewClient(redisOptions(cfg))}
}

func redisOptions(cfg *cfg.RedisCfg) *r.Options {
	return &r.Options{
		Addr:                  cfg.Addr,
		Username:              cfg.User,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		MaxRetries:            cfg.MaxRetries,
		DialTimeout:           cfg.DialTimeout,
		ReadTimeout:           cfg.Timeout,
		WriteTimeout:          cfg.Timeout,
		PoolTimeout:           redisPoolTimeout,
		ContextTimeoutEnabled: true,
	}
}

// Ping проверяет доступность Redis при старте.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.Client.Close()
}
