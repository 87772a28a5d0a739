package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RedisCache is the external distributed backend. Entry expiry is delegated
// to redis TTLs; size bounding is the server's concern.
type RedisCache struct {
	client *redis.Client

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedis connects to redis and verifies the connection with a ping.
func NewRedis(addr string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "cache: redis ping")
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, signalText, icpContext, modelID string) (json.RawMessage, bool) {
	key := Key(signalText, icpContext, modelID)

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("cache: redis get failed", zap.Error(err))
		}
		r.misses.Add(1)
		return nil, false
	}

	r.hits.Add(1)
	return json.RawMessage(val), true
}

func (r *RedisCache) Set(ctx context.Context, signalText string, value json.RawMessage, icpContext, modelID string, ttl time.Duration) {
	key := Key(signalText, icpContext, modelID)
	if err := r.client.Set(ctx, key, []byte(value), ttl).Err(); err != nil {
		zap.L().Warn("cache: redis set failed", zap.Error(err))
	}
}

func (r *RedisCache) Invalidate(ctx context.Context, signalText, icpContext, modelID string) {
	key := Key(signalText, icpContext, modelID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		zap.L().Warn("cache: redis del failed", zap.Error(err))
	}
}

// ClearAll deletes only keys carrying the model cache prefix, leaving other
// tenants of the redis database untouched.
func (r *RedisCache) ClearAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return eris.Wrap(err, "cache: redis scan")
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return eris.Wrap(err, "cache: redis del")
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size := 0
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			break
		}
		size += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return Stats{
		Backend: "redis",
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
		Size:    size,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
