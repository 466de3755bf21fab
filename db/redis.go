package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const productsKey = "coinquote:products"

type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache is a read-through cache in front of another product Repo.
// Cache failures are logged and fall through to the upstream repo.
type RedisCache struct {
	client   redisCmdable
	ttl      time.Duration
	upstream Repo
	logger   zerolog.Logger
}

var _ Repo = (*RedisCache)(nil)

func NewRedisCache(ctx context.Context, redisURL, password string, ttl time.Duration, upstream Repo, logger zerolog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opt.Password = password
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisCache(client, ttl, upstream, logger), nil
}

func newRedisCache(client redisCmdable, ttl time.Duration, upstream Repo, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client:   client,
		ttl:      ttl,
		upstream: upstream,
		logger:   logger.With().Str("component", "products_cache").Logger(),
	}
}

func (c *RedisCache) GetProducts(ctx context.Context) (Products, error) {
	raw, err := c.client.Get(ctx, productsKey).Bytes()
	switch {
	case err == nil:
		var products Products
		if err := json.Unmarshal(raw, &products); err == nil && len(products) > 0 {
			c.logger.Debug().Int("products", len(products)).Msg("products served from cache")
			return products, nil
		}
		c.logger.Warn().Msg("discarding unreadable cached products")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("redis GET failed")
	}

	products, err := c.upstream.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(products)
	if err != nil {
		return nil, fmt.Errorf("marshal products: %w", err)
	}
	if err := c.client.Set(ctx, productsKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis SET failed")
	}
	return products, nil
}

func (c *RedisCache) Close() error {
	if closer, ok := c.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
