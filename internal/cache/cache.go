package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under a namespace. A Cache without a redis
// client misses on every read and ignores writes.
type Cache struct {
	Redis     redis.UniversalClient
	Namespace string
}

func NewCache(namespace string, redisCl redis.UniversalClient) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
	}
}

// Enabled reports whether a redis client is attached
func (c *Cache) Enabled() bool {
	return c != nil && c.Redis != nil
}

func (c *Cache) key(key string) string {
	return c.Namespace + ":" + key
}

// GetJSON decodes a cached value into dst. Missing keys report false.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := c.Redis.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// StoreJSON encodes value and stores it with ttl
func (c *Cache) StoreJSON(ctx context.Context, key string, ttl time.Duration, value any) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, c.key(key), raw, ttl).Err()
}

// Remove deletes one key
func (c *Cache) Remove(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	return c.Redis.Del(ctx, c.key(key)).Err()
}

// Flush deletes every key in the namespace
func (c *Cache) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.Redis.Scan(ctx, 0, c.Namespace+":*", 100).Iterator()
	pl := c.Redis.Pipeline()
	for iter.Next(ctx) {
		pl.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	_, err := pl.Exec(ctx)
	return err
}

// TokenKey derives a cache key from a bearer token without storing it
func TokenKey(prefix, token string) string {
	sum := sha256.Sum256([]byte(token))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
