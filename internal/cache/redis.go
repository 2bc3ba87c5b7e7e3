package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/checker"
)

// Redis stores verdicts as JSON with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *zap.SugaredLogger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedis(client, ttl, logger), nil
}

// Get treats every failure as a miss; the cache is never load-bearing.
func (r *Redis) Get(ctx context.Context, key string) (*checker.Verdict, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warnw("Verdict cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var v checker.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		r.logger.Warnw("Discarding corrupt cached verdict", "key", key, "error", err)
		return nil, false
	}
	return &v, true
}

func (r *Redis) Set(ctx context.Context, key string, v checker.Verdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling verdict: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("caching verdict: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
