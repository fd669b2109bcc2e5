package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelCache stores resolved channels between scans.
type ChannelCache interface {
	Get(ctx context.Context, key string) (*Channel, error)
	Set(ctx context.Context, key string, ch *Channel) error
}

type redisChannelCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisChannelCache returns a ChannelCache backed by rdb.
func NewRedisChannelCache(rdb *redis.Client, ttl time.Duration) ChannelCache {
	return &redisChannelCache{rdb: rdb, ttl: ttl}
}

func cacheKey(key string) string {
	return "yt:channel:" + key
}

// Get returns (nil, nil) on a miss.
func (c *redisChannelCache) Get(ctx context.Context, key string) (*Channel, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading channel cache: %w", err)
	}
	var ch Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decoding cached channel: %w", err)
	}
	return &ch, nil
}

func (c *redisChannelCache) Set(ctx context.Context, key string, ch *Channel) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, cacheKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing channel cache: %w", err)
	}
	return nil
}
