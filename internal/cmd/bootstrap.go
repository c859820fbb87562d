package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/snowball-gateway/internal/config"
	"github.com/Sternrassler/snowball-gateway/pkg/batch"
	"github.com/Sternrassler/snowball-gateway/pkg/cache"
	"github.com/Sternrassler/snowball-gateway/pkg/credential"
	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/logging"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/ratelimit"
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/redis/go-redis/v9"
)

// components is the wired gateway stack shared by serve and call.
type components struct {
	pool       *credential.Pool
	limiter    *ratelimit.Limiter
	client     *snowball.Client
	normalizer *normalize.Normalizer
	gateway    *gateway.Gateway
	batch      *batch.Fetcher
	cache      *cache.Manager
	redis      *redis.Client
}

// bootstrap builds the stack from cfg. Close must be called when done.
func bootstrap(ctx context.Context, cfg *config.Config) (*components, error) {
	logger := logging.NewLogger("bootstrap")

	if len(cfg.Tokens) == 0 {
		logger.Warn().Msg("No Xueqiu token configured; requests are sent unauthenticated. Set " + config.TokenEnv)
	}

	c := &components{}
	c.pool = credential.NewPool(cfg.Tokens, cfg.Pool, logging.NewLogger("credential-pool"))

	limiter, err := ratelimit.NewLimiter(cfg.Limiter, logging.NewLogger("ratelimit"))
	if err != nil {
		return nil, fmt.Errorf("limiter: %w", err)
	}
	c.limiter = limiter

	clientOpts := []snowball.Option{
		snowball.WithTimeout(cfg.Gateway.Timeout),
		snowball.WithLogger(logging.NewLogger("snowball-client")),
	}
	if cfg.Gateway.UserAgent != "" {
		clientOpts = append(clientOpts, snowball.WithUserAgent(cfg.Gateway.UserAgent))
	}
	c.client = snowball.NewClient(clientOpts...)

	normOpts := []normalize.Option{
		normalize.WithLocation(cfg.Normalize.Location),
		normalize.WithLogger(logging.NewLogger("normalize")),
	}
	if !cfg.Normalize.ConvertTimestamps {
		normOpts = append(normOpts, normalize.WithoutTimestamps())
	}
	c.normalizer = normalize.New(normOpts...)

	gwOpts := []gateway.Option{
		gateway.WithRetryDelay(cfg.Gateway.RetryDelay),
		gateway.WithLogger(logging.NewLogger("gateway")),
	}

	if cfg.Cache.Enabled {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = c.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}

		c.cache = cache.NewManager(c.redis)
		gwOpts = append(gwOpts, gateway.WithCache(c.cache, cfg.Cache.TTL))
		logger.Info().Str("addr", cfg.Cache.RedisAddr).Dur("ttl", cfg.Cache.TTL).Msg("Response cache enabled")
	}

	c.gateway, err = gateway.New(c.client, c.pool, c.limiter, c.normalizer, gwOpts...)
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}
	c.batch = batch.NewFetcher(c.gateway, cfg.Batch)

	logger.Info().
		Int("credentials", c.pool.Size()).
		Dur("min_interval", cfg.Limiter.MinInterval).
		Dur("max_interval", cfg.Limiter.MaxInterval).
		Str("timezone", cfg.Normalize.Location.String()).
		Msg("Gateway ready")

	return c, nil
}

// Close releases the Redis connection, if any.
func (c *components) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
