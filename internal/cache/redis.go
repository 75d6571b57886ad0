package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Redis is a Cache backed by a Redis server. Values are msgpack-encoded and
// expire server-side.
type Redis struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return rdb, nil
}

// NewRedis creates a Redis-backed cache. Keys are namespaced with prefix.
func NewRedis(client *redis.Client, prefix string, log zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		log:    log.With().Str("component", "redis_cache").Logger(),
	}
}

// Get returns the cached snapshot. Redis errors are logged and reported as a miss.
func (r *Redis) Get(ctx context.Context, key string) (domain.MarketSnapshot, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.MarketSnapshot{}, false
	}
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Redis get failed")
		return domain.MarketSnapshot{}, false
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return domain.MarketSnapshot{}, false
	}
	return snap, true
}

// Put stores snap with a server-side TTL.
func (r *Redis) Put(ctx context.Context, key string, snap domain.MarketSnapshot, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := encodeSnapshot(snap)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Redis set failed")
	}
}

// Invalidate deletes every key under the prefix.
func (r *Redis) Invalidate(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	pipe := r.client.Pipeline()
	n := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		n++
	}
	if err := iter.Err(); err != nil {
		r.log.Warn().Err(err).Msg("Redis scan failed")
		return
	}
	if n == 0 {
		return
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Redis invalidate failed")
		return
	}
	r.log.Debug().Int("keys", n).Msg("Cache invalidated")
}

func encodeSnapshot(snap domain.MarketSnapshot) ([]byte, error) {
	return msgpack.Marshal(&snap)
}

func decodeSnapshot(raw []byte) (domain.MarketSnapshot, error) {
	var snap domain.MarketSnapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
