package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces transcript keys.
const DefaultRedisPrefix = "vidqa:transcript:"

// Redis stores each transcript as a JSON array under prefix+videoID, without TTL.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// ConnectRedis parses redisURL and pings the server.
func ConnectRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	slog.Info("transcript store: redis connected", slog.String("addr", opts.Addr))
	return NewRedis(rdb, DefaultRedisPrefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, videoID string) ([]string, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+videoID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var segs []string
	if err := json.Unmarshal(data, &segs); err != nil {
		return nil, false, fmt.Errorf("redis decode %s: %w", videoID, err)
	}
	return segs, true, nil
}

func (r *Redis) Put(ctx context.Context, videoID string, segments []string) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+videoID, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix.
func (r *Redis) Clear(ctx context.Context) (bool, error) {
	var deleted int64
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 200).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			n, err := r.rdb.Del(ctx, batch...).Result()
			if err != nil {
				return deleted > 0, fmt.Errorf("redis del: %w", err)
			}
			deleted += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted > 0, fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		n, err := r.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return deleted > 0, fmt.Errorf("redis del: %w", err)
		}
		deleted += n
	}
	return deleted > 0, nil
}

// Close releases the client.
func (r *Redis) Close() error { return r.rdb.Close() }
