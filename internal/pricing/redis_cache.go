package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores one hash per (tenant, event seating): field = seat uid,
// value = JSON decision. The hash expires ttl after its last write so a
// missed invalidation cannot serve stale prices forever.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps rdb. prefix namespaces the keys.
func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "price"
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(tenantID, eventSeatingID uint64) string {
	return fmt.Sprintf("%s:%d:%d", c.prefix, tenantID, eventSeatingID)
}

func (c *RedisCache) Get(ctx context.Context, tenantID, eventSeatingID uint64, seatUIDs []string) (map[string]Decision, error) {
	out := make(map[string]Decision, len(seatUIDs))
	if len(seatUIDs) == 0 {
		return out, nil
	}
	vals, err := c.rdb.HMGet(ctx, c.key(tenantID, eventSeatingID), seatUIDs...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var d Decision
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			continue
		}
		out[seatUIDs[i]] = d
	}
	return out, nil
}

func (c *RedisCache) Set(ctx context.Context, tenantID, eventSeatingID uint64, decisions map[string]Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	fields := make(map[string]any, len(decisions))
	for uid, d := range decisions {
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		fields[uid] = string(b)
	}
	key := c.key(tenantID, eventSeatingID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Clear(ctx context.Context, tenantID, eventSeatingID uint64) error {
	return c.rdb.Del(ctx, c.key(tenantID, eventSeatingID)).Err()
}
