package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"supermart/internal/domain"
)

type RedisSummaryCache struct {
	client *redis.Client
	prefix string
}

func NewRedisSummaryCache(addr string, password string, db int) *RedisSummaryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSummaryCache{client: client, prefix: "supermart:summary:"}
}

func (c *RedisSummaryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSummaryCache) Close() error {
	return c.client.Close()
}

func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*domain.SalesSummary, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summary domain.SalesSummary
	if err := json.Unmarshal(val, &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, payload, ttl).Err()
}
