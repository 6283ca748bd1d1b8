package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "habibdukan:reports"
	generationKey = keyPrefix + ":generation"
)

// RedisReportCache namespaces keys by a generation counter. Invalidate bumps
// the counter so stale entries are never read again and simply expire.
type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

// Get reads the generation once and returns the slot a miss should be filled
// through.
func (c *RedisReportCache) Get(ctx context.Context, key string, dest any) (Slot, bool, error) {
	slot, err := c.slot(ctx, key)
	if err != nil {
		return "", false, err
	}

	val, err := c.client.Get(ctx, string(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return slot, false, nil
	}
	if err != nil {
		return slot, false, err
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return slot, false, err
	}
	return slot, true, nil
}

// Set writes under the generation captured by Get. If an Invalidate ran in
// between, the entry is unreachable and only waits out its TTL.
func (c *RedisReportCache) Set(ctx context.Context, slot Slot, value any, ttl time.Duration) error {
	if value == nil || slot == "" {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, string(slot), payload, ttl).Err()
}

func (c *RedisReportCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *RedisReportCache) slot(ctx context.Context, key string) (Slot, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return Slot(fmt.Sprintf("%s:%d:%s", keyPrefix, gen, key)), nil
}
